package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"myshop/internal/models"
	"myshop/internal/repositories"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MediaURLs resolves stored blob paths to public URLs.
type MediaURLs interface {
	URL(name string) string
}

type ownerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type imageResponse struct {
	ID         string    `json:"id"`
	Image      string    `json:"image"`
	ImageURL   *string   `json:"image_url"`
	IsPrimary  bool      `json:"is_primary"`
	Order      int       `json:"order"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type productResponse struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	Price               string          `json:"price"`
	Stock               int             `json:"stock"`
	SKU                 string          `json:"sku"`
	ImageURL            *string         `json:"image_url"`
	Images              []imageResponse `json:"images"`
	Owner               *ownerResponse  `json:"owner"`
	IsAvailable         bool            `json:"is_available"`
	TotalInventoryValue string          `json:"total_inventory_value"`
	FormattedPrice      string          `json:"formatted_price"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type listResponse struct {
	Count    int64             `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []productResponse `json:"results"`
	Cached   bool              `json:"cached"`
	Message  string            `json:"message"`
}

type statisticsResponse struct {
	TotalProducts int64   `json:"total_products"`
	AveragePrice  *json.Number `json:"average_price"`
	TotalStock    int64   `json:"total_stock"`
	Cached        bool    `json:"cached"`
	Message       string  `json:"message"`
}

// serializer renders models with absolute media URLs for the current request.
type serializer struct {
	media   MediaURLs
	baseURL string
}

func newSerializer(c *fiber.Ctx, media MediaURLs) serializer {
	return serializer{media: media, baseURL: c.BaseURL()}
}

func (s serializer) mediaURL(name string) *string {
	if name == "" || s.media == nil {
		return nil
	}
	url := s.media.URL(name)
	if strings.HasPrefix(url, "/") {
		url = s.baseURL + url
	}
	return &url
}

func (s serializer) image(img models.ProductImage) imageResponse {
	return imageResponse{
		ID:         img.ID,
		Image:      img.Image,
		ImageURL:   s.mediaURL(img.Image),
		IsPrimary:  img.IsPrimary,
		Order:      img.Order,
		UploadedAt: img.UploadedAt,
	}
}

func (s serializer) product(p models.Product) productResponse {
	resp := productResponse{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		Price:               p.Price.StringFixed(2),
		Stock:               p.Stock,
		SKU:                 p.SKU,
		Images:              make([]imageResponse, 0, len(p.Images)),
		IsAvailable:         p.IsAvailable(),
		TotalInventoryValue: p.TotalInventoryValue().StringFixed(2),
		FormattedPrice:      formatPrice(p.Price),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	for _, img := range p.Images {
		resp.Images = append(resp.Images, s.image(img))
	}
	// images arrive in display order; the first one is the cover
	if len(p.Images) > 0 {
		resp.ImageURL = s.mediaURL(p.Images[0].Image)
	}
	if p.Owner != nil {
		resp.Owner = &ownerResponse{ID: p.Owner.ID, Username: p.Owner.Username}
		if p.Owner.Email != nil {
			resp.Owner.Email = *p.Owner.Email
		}
	}
	return resp
}

func (s serializer) products(items []models.Product) []productResponse {
	out := make([]productResponse, 0, len(items))
	for _, p := range items {
		out = append(out, s.product(p))
	}
	return out
}

func statistics(stats models.ProductStatistics, cached bool) statisticsResponse {
	resp := statisticsResponse{
		TotalProducts: stats.TotalProducts,
		TotalStock:    stats.TotalStock,
		Cached:        cached,
		Message:       "Calculated fresh!",
	}
	if cached {
		resp.Message = "From cache!"
	}
	if stats.AveragePrice != nil {
		// a JSON number, kept at two decimal places
		avg := json.Number(stats.AveragePrice.StringFixed(2))
		resp.AveragePrice = &avg
	}
	return resp
}

func listMessage(cached bool) string {
	if cached {
		return "This list came from cache!"
	}
	return "Fresh from database!"
}

func pageLinks(c *fiber.Ctx, page repositories.ProductPage) (next, previous *string) {
	if page.HasNext() {
		link := pageURL(c, page.Page+1)
		next = &link
	}
	if page.HasPrevious() {
		link := pageURL(c, page.Page-1)
		previous = &link
	}
	return next, previous
}

// formatPrice renders a price as "$1,234.50".
func formatPrice(price decimal.Decimal) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("$%v", number.Decimal(price.InexactFloat64(), number.Scale(2)))
}
