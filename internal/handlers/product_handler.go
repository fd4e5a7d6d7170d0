package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"myshop/internal/middleware"
	"myshop/internal/services"
	"myshop/internal/validators"
	pkgerrors "myshop/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service *services.CatalogService
	media   MediaURLs
	paging  Paging
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.CatalogService, media MediaURLs, paging Paging) *ProductHandler {
	return &ProductHandler{
		service: service,
		media:   media,
		paging:  paging,
	}
}

// RegisterRoutes registers the product routes. throttle guards every route except
// creation, which is guarded by burst alone. Either may be nil.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, throttle, burst fiber.Handler) {
	throttle = orNext(throttle)
	burst = orNext(burst)

	productRoutes := router.Group("/products")
	productRoutes.Get("/", throttle, h.HandleList)
	productRoutes.Post("/", burst, h.HandleCreate)
	// registered before /:id so "statistics" is not taken for an id
	productRoutes.Get("/statistics", throttle, h.HandleStatistics)
	productRoutes.Get("/:id", throttle, h.HandleRetrieve)
	productRoutes.Put("/:id", throttle, h.HandleUpdate)
	productRoutes.Patch("/:id", throttle, h.HandlePartialUpdate)
	productRoutes.Delete("/:id", throttle, h.HandleDelete)
	productRoutes.Post("/:id/upload_image", throttle, h.HandleUploadImage)
}

func orNext(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}

// HandleList returns one page of products. The bare listing is served from the cache.
func (h *ProductHandler) HandleList(c *fiber.Ctx) error {
	req, err := parseListRequest(c, h.paging)
	if err != nil {
		return err
	}

	result, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return err
	}
	page := result.Page
	if page.Page > 1 && len(page.Items) == 0 {
		return invalidPage()
	}

	next, previous := pageLinks(c, page)
	return c.JSON(listResponse{
		Count:    page.Count,
		Next:     next,
		Previous: previous,
		Results:  newSerializer(c, h.media).products(page.Items),
		Cached:   result.Cached,
		Message:  listMessage(result.Cached),
	})
}

// HandleStatistics returns count, average price and total stock.
func (h *ProductHandler) HandleStatistics(c *fiber.Ctx) error {
	result, err := h.service.Statistics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(statistics(result.Stats, result.Cached))
}

// HandleRetrieve returns a single product by its ID.
func (h *ProductHandler) HandleRetrieve(c *fiber.Ctx) error {
	product, err := h.service.Retrieve(c.UserContext(), c.Params("id"), middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(newSerializer(c, h.media).product(*product))
}

// HandleCreate creates a product owned by the caller.
func (h *ProductHandler) HandleCreate(c *fiber.Ctx) error {
	input, err := decodeProductInput(c)
	if err != nil {
		return err
	}
	product, err := h.service.Create(c.UserContext(), input, middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newSerializer(c, h.media).product(*product))
}

// HandleUpdate replaces every writable field of a product.
func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	input, err := decodeProductInput(c)
	if err != nil {
		return err
	}
	product, err := h.service.Update(c.UserContext(), c.Params("id"), input, middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(newSerializer(c, h.media).product(*product))
}

// HandlePartialUpdate changes only the fields present in the body.
func (h *ProductHandler) HandlePartialUpdate(c *fiber.Ctx) error {
	input, err := decodeProductInput(c)
	if err != nil {
		return err
	}
	product, err := h.service.PartialUpdate(c.UserContext(), c.Params("id"), input, middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(newSerializer(c, h.media).product(*product))
}

// HandleDelete removes a product.
func (h *ProductHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id"), middleware.IdentityFrom(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleUploadImage attaches a multipart "image" file to a product.
func (h *ProductHandler) HandleUploadImage(c *fiber.Ctx) error {
	var errs validators.Errors

	upload := services.ImageUpload{}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		errs = append(errs, validators.FieldError{Field: "image", Code: validators.CodeRequired, Message: "No file was submitted."})
	} else {
		upload.File = validators.ImageFile{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
			Size:        fileHeader.Size,
		}
		f, err := fileHeader.Open()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to open upload")
		}
		defer f.Close()
		// anything past the limit is rejected by size anyway
		upload.File.Data, err = io.ReadAll(io.LimitReader(f, validators.MaxImageSize+1))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to read upload")
		}
	}

	if raw := c.FormValue("is_primary"); raw != "" {
		isPrimary, ok := parseFormBool(raw)
		if !ok {
			errs = append(errs, validators.FieldError{Field: "is_primary", Code: validators.CodeInvalid, Message: "Must be a valid boolean."})
		}
		upload.IsPrimary = isPrimary
	}
	if raw := c.FormValue("order"); raw != "" {
		order, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, validators.FieldError{Field: "order", Code: validators.CodeInvalid, Message: "A valid integer is required."})
		}
		upload.Order = order
	}
	if len(errs) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid data provided").WithDetails(errs)
	}

	image, err := h.service.UploadImage(c.UserContext(), c.Params("id"), upload, middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Image uploaded successfully",
		"image":   newSerializer(c, h.media).image(*image),
	})
}

func parseFormBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "on", "yes":
		return true, true
	case "false", "0", "off", "no":
		return false, true
	}
	return false, false
}

// decodeProductInput reads the JSON body field by field so every bad value is
// reported, and absent fields stay nil.
func decodeProductInput(c *fiber.Ctx) (services.ProductInput, error) {
	var input services.ProductInput

	fields := map[string]json.RawMessage{}
	if body := bytes.TrimSpace(c.Body()); len(body) > 0 {
		if body[0] != '{' {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "Invalid data provided").WithDetails(validators.Errors{{
				Field:   validators.NonFieldErrors,
				Code:    validators.CodeInvalid,
				Message: "Invalid data. Expected a dictionary, but got " + jsonKind(body) + ".",
			}})
		}
		if err := c.App().Config().JSONDecoder(body, &fields); err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "Invalid data provided").WithDetails(validators.Errors{{
				Field:   validators.NonFieldErrors,
				Code:    validators.CodeInvalid,
				Message: "JSON parse error - " + err.Error(),
			}})
		}
	}

	var errs validators.Errors
	fail := func(field, message string) {
		errs = append(errs, validators.FieldError{Field: field, Code: validators.CodeInvalid, Message: message})
	}
	isNull := func(raw json.RawMessage) bool {
		return string(bytes.TrimSpace(raw)) == "null"
	}

	stringField := func(name string) *string {
		raw, ok := fields[name]
		if !ok {
			return nil
		}
		if isNull(raw) {
			fail(name, "This field may not be null.")
			return nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			fail(name, "Not a valid string.")
			return nil
		}
		return &s
	}

	input.Name = stringField("name")
	input.Description = stringField("description")
	input.SKU = stringField("sku")

	if raw, ok := fields["price"]; ok {
		var price decimal.Decimal
		switch {
		case isNull(raw):
			fail("price", "This field may not be null.")
		case json.Unmarshal(raw, &price) != nil:
			fail("price", "A valid number is required.")
		default:
			input.Price = &price
		}
	}

	if raw, ok := fields["stock"]; ok {
		if isNull(raw) {
			fail("stock", "This field may not be null.")
		} else if stock, ok := decodeInt(raw); ok {
			input.Stock = &stock
		} else {
			fail("stock", "A valid integer is required.")
		}
	}

	if len(errs) > 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "Invalid data provided").WithDetails(errs)
	}
	return input, nil
}

// jsonKind names the type of a JSON value by its first byte.
func jsonKind(body []byte) string {
	switch body[0] {
	case 'n':
		return "null"
	case '[':
		return "list"
	case '"':
		return "str"
	case 't', 'f':
		return "bool"
	}
	return "number"
}

// decodeInt accepts a JSON integer or a string holding one.
func decodeInt(raw json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}
