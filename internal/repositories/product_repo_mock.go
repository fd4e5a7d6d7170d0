package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"myshop/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	products map[string]models.Product
	images   map[string][]models.ProductImage
	users    UserRepository
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
// When users is non-nil, owners are resolved on read the way the GORM preload does.
func NewMockProductRepository(users UserRepository) *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
		images:   make(map[string][]models.ProductImage),
		users:    users,
	}
}

// List returns one filtered, ordered page of products.
func (r *MockProductRepository) List(ctx context.Context, query ProductQuery) (ProductPage, error) {
	r.mu.RLock()
	matched := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if matchesFilter(p, query.Filter) {
			matched = append(matched, p)
		}
	}
	r.mu.RUnlock()

	ordering := query.Ordering
	if ordering.Field == "" {
		ordering = DefaultOrdering
	}
	sort.SliceStable(matched, func(i, j int) bool {
		cmp := compareProducts(matched[i], matched[j], ordering.Field)
		if cmp == 0 {
			return matched[i].ID < matched[j].ID
		}
		if ordering.Desc {
			return cmp > 0
		}
		return cmp < 0
	})

	count := int64(len(matched))
	start := min(query.Page.Offset(), len(matched))
	end := len(matched)
	if query.Page.PageSize > 0 {
		end = min(start+query.Page.PageSize, len(matched))
	}

	items := make([]models.Product, 0, end-start)
	for _, p := range matched[start:end] {
		items = append(items, r.hydrate(ctx, p))
	}
	return ProductPage{
		Items:    items,
		Count:    count,
		Page:     max(query.Page.Page, 1),
		PageSize: query.Page.PageSize,
	}, nil
}

func matchesFilter(p models.Product, f ProductFilter) bool {
	if f.Price != nil && !p.Price.Equal(*f.Price) {
		return false
	}
	if f.PriceMin != nil && p.Price.LessThan(*f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && p.Price.GreaterThan(*f.PriceMax) {
		return false
	}
	if f.Stock != nil && p.Stock != *f.Stock {
		return false
	}
	if f.StockMin != nil && p.Stock < *f.StockMin {
		return false
	}
	if f.StockMax != nil && p.Stock > *f.StockMax {
		return false
	}
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	name := strings.ToLower(p.Name)
	description := strings.ToLower(p.Description)
	for _, term := range f.SearchTerms() {
		if !strings.HasPrefix(name, term) && !strings.Contains(description, term) {
			return false
		}
	}
	return true
}

func compareProducts(a, b models.Product, field string) int {
	switch field {
	case OrderByPrice:
		return a.Price.Cmp(b.Price)
	case OrderByStock:
		return a.Stock - b.Stock
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (r *MockProductRepository) hydrate(ctx context.Context, p models.Product) models.Product {
	r.mu.RLock()
	images := append([]models.ProductImage(nil), r.images[p.ID]...)
	r.mu.RUnlock()
	sortImages(images)
	p.Images = images
	if p.Images == nil {
		p.Images = []models.ProductImage{}
	}

	if r.users != nil && p.OwnerID != "" {
		if owner, err := r.users.GetByID(ctx, p.OwnerID); err == nil {
			p.Owner = owner
		}
	}
	return p
}

func sortImages(images []models.ProductImage) {
	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.IsPrimary != b.IsPrimary {
			return a.IsPrimary
		}
		return a.UploadedAt.After(b.UploadedAt)
	})
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	product, ok := r.products[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	hydrated := r.hydrate(ctx, product)
	return &hydrated, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prepareForCreate(product)
	if r.skuTaken(product.SKU, product.ID) {
		return fmt.Errorf("sku %s: %w", product.SKU, ErrDuplicateSKU)
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.products[product.ID] = stripRelations(*product)
	return nil
}

// Update modifies an existing product, keeping its owner and creation time.
func (r *MockProductRepository) Update(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	if r.skuTaken(product.SKU, product.ID) {
		return fmt.Errorf("sku %s: %w", product.SKU, ErrDuplicateSKU)
	}
	product.UpdatedAt = time.Now()
	existing.Name = product.Name
	existing.Description = product.Description
	existing.Price = product.Price
	existing.Stock = product.Stock
	existing.SKU = product.SKU
	existing.UpdatedAt = product.UpdatedAt
	r.products[product.ID] = existing
	return nil
}

// Delete removes a product and its images.
func (r *MockProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	delete(r.products, id)
	delete(r.images, id)
	return nil
}

// AddImage attaches an image to an existing product.
func (r *MockProductRepository) AddImage(_ context.Context, image *models.ProductImage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[image.ProductID]; !ok {
		return fmt.Errorf("product with ID %s: %w", image.ProductID, ErrNotFound)
	}
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if image.UploadedAt.IsZero() {
		image.UploadedAt = time.Now()
	}
	r.images[image.ProductID] = append(r.images[image.ProductID], *image)
	return nil
}

// ListImages returns the images of a product in display order.
func (r *MockProductRepository) ListImages(_ context.Context, productID string) ([]models.ProductImage, error) {
	r.mu.RLock()
	images := append([]models.ProductImage{}, r.images[productID]...)
	r.mu.RUnlock()
	sortImages(images)
	return images, nil
}

// Statistics aggregates count, average price and total stock.
func (r *MockProductRepository) Statistics(_ context.Context) (models.ProductStatistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats models.ProductStatistics
	sum := decimal.Zero
	for _, p := range r.products {
		stats.TotalProducts++
		stats.TotalStock += int64(p.Stock)
		sum = sum.Add(p.Price)
	}
	if stats.TotalProducts > 0 {
		avg := sum.DivRound(decimal.NewFromInt(stats.TotalProducts), 2)
		stats.AveragePrice = &avg
	}
	return stats, nil
}

func (r *MockProductRepository) skuTaken(sku, exceptID string) bool {
	for id, p := range r.products {
		if id != exceptID && p.SKU == sku {
			return true
		}
	}
	return false
}

func stripRelations(p models.Product) models.Product {
	p.Owner = nil
	p.Images = nil
	return p
}
