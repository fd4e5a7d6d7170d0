package repositories

import (
	"context"
	"errors"
	"strings"

	"myshop/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateSKU is returned when a sku is already taken by another product.
	ErrDuplicateSKU = errors.New("product with this sku already exists")
)

// Ordering fields accepted by List.
const (
	OrderByPrice     = "price"
	OrderByStock     = "stock"
	OrderByCreatedAt = "created_at"
)

// ProductFilter narrows a product listing. Nil/empty fields are ignored.
type ProductFilter struct {
	Price    *decimal.Decimal
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	Stock    *int
	StockMin *int
	StockMax *int
	OwnerID  string
	Search   string
}

// SearchTerms splits the search string into lower-cased terms.
func (f ProductFilter) SearchTerms() []string {
	return strings.Fields(strings.ToLower(f.Search))
}

// Ordering is a sort key and direction.
type Ordering struct {
	Field string
	Desc  bool
}

// DefaultOrdering lists newest products first.
var DefaultOrdering = Ordering{Field: OrderByCreatedAt, Desc: true}

// ParseOrdering parses "price", "-stock", ... and reports whether the value was recognized.
func ParseOrdering(value string) (Ordering, bool) {
	value = strings.TrimSpace(value)
	desc := strings.HasPrefix(value, "-")
	field := strings.TrimPrefix(value, "-")
	switch field {
	case OrderByPrice, OrderByStock, OrderByCreatedAt:
		return Ordering{Field: field, Desc: desc}, true
	}
	return DefaultOrdering, false
}

func (o Ordering) String() string {
	if o.Desc {
		return "-" + o.Field
	}
	return o.Field
}

// PageRequest asks for one offset page. Page is 1-based.
type PageRequest struct {
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// ProductQuery is the full input of a listing.
type ProductQuery struct {
	Filter   ProductFilter
	Ordering Ordering
	Page     PageRequest
}

// ProductPage is one page of a listing plus the total match count.
type ProductPage struct {
	Items    []models.Product `json:"items"`
	Count    int64            `json:"count"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// HasNext reports whether rows exist after this page.
func (p ProductPage) HasNext() bool {
	return int64(p.Page)*int64(p.PageSize) < p.Count
}

// HasPrevious reports whether this is not the first page.
func (p ProductPage) HasPrevious() bool {
	return p.Page > 1
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, query ProductQuery) (ProductPage, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	AddImage(ctx context.Context, image *models.ProductImage) error
	ListImages(ctx context.Context, productID string) ([]models.ProductImage, error)
	Statistics(ctx context.Context) (models.ProductStatistics, error)
}

// GenerateSKU returns "PROD-" followed by 8 upper-case hex characters of a fresh uuid.
func GenerateSKU() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PROD-" + strings.ToUpper(raw[:8])
}

func prepareForCreate(product *models.Product) {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if strings.TrimSpace(product.SKU) == "" {
		product.SKU = GenerateSKU()
	}
}
