package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"myshop/internal/repositories"
	"myshop/internal/services"
	"myshop/internal/validators"
	pkgerrors "myshop/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Paging bounds the page_size query parameter.
type Paging struct {
	PageSize    int
	MaxPageSize int
}

func invalidPage() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "Invalid page.")
}

// parseListRequest turns the listing query string into a ListRequest. A request
// without any query string is the unfiltered, cacheable view.
func parseListRequest(c *fiber.Ctx, paging Paging) (services.ListRequest, error) {
	if len(c.Request().URI().QueryString()) == 0 {
		return services.ListRequest{Unfiltered: true}, nil
	}

	var (
		filter repositories.ProductFilter
		errs   validators.Errors
	)
	// aliases of one bound all apply, so the tighter value wins
	decimalParam := func(dst **decimal.Decimal, tighter func(decimal.Decimal, ...decimal.Decimal) decimal.Decimal, names ...string) {
		for _, name := range names {
			raw := strings.TrimSpace(c.Query(name))
			if raw == "" {
				continue
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				errs = append(errs, validators.FieldError{Field: name, Code: validators.CodeInvalid, Message: "Enter a number."})
				continue
			}
			if *dst != nil {
				d = tighter(**dst, d)
			}
			*dst = &d
		}
	}
	intParam := func(dst **int, name string) {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, validators.FieldError{Field: name, Code: validators.CodeInvalid, Message: "Enter a number."})
			return
		}
		*dst = &n
	}

	decimalParam(&filter.Price, decimal.Max, "price")
	decimalParam(&filter.PriceMin, decimal.Max, "price__gte", "price_min")
	decimalParam(&filter.PriceMax, decimal.Min, "price__lte", "price_max")
	intParam(&filter.Stock, "stock")
	intParam(&filter.StockMin, "stock__gte")
	intParam(&filter.StockMax, "stock__lte")
	filter.OwnerID = strings.TrimSpace(c.Query("created_by"))
	filter.Search = c.Query("search")
	if len(errs) > 0 {
		return services.ListRequest{}, pkgerrors.New(pkgerrors.CodeValidation, "Invalid filter").WithDetails(errs)
	}

	ordering := repositories.DefaultOrdering
	if raw := c.Query("ordering"); raw != "" {
		// unknown fields fall back to the default ordering
		if parsed, ok := repositories.ParseOrdering(strings.Split(raw, ",")[0]); ok {
			ordering = parsed
		}
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return services.ListRequest{}, invalidPage()
		}
		page = n
	}

	pageSize := paging.PageSize
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageSize = n
		}
	}
	if paging.MaxPageSize > 0 && pageSize > paging.MaxPageSize {
		pageSize = paging.MaxPageSize
	}

	return services.ListRequest{Query: repositories.ProductQuery{
		Filter:   filter,
		Ordering: ordering,
		Page:     repositories.PageRequest{Page: page, PageSize: pageSize},
	}}, nil
}

// pageURL is the absolute URL of the current listing with page replaced.
// Page 1 drops the parameter.
func pageURL(c *fiber.Ctx, page int) string {
	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	link := c.BaseURL() + c.Path()
	if encoded := query.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return link
}
