package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"myshop/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("is_primary DESC").Order("uploaded_at DESC")
}

func (r *GORMProductRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Owner").Preload("Images", orderedImages)
}

// List retrieves one filtered, ordered page of products.
func (r *GORMProductRepository) List(ctx context.Context, query ProductQuery) (ProductPage, error) {
	base := applyProductFilter(r.db.WithContext(ctx).Model(&models.Product{}), query.Filter).Session(&gorm.Session{})

	var count int64
	if err := base.Count(&count).Error; err != nil {
		return ProductPage{}, fmt.Errorf("failed to count products: %w", err)
	}

	ordering := query.Ordering
	if ordering.Field == "" {
		ordering = DefaultOrdering
	}
	direction := "ASC"
	if ordering.Desc {
		direction = "DESC"
	}

	var products []models.Product
	err := base.
		Preload("Owner").
		Preload("Images", orderedImages).
		Order(fmt.Sprintf("%s %s", ordering.Field, direction)).
		Order("id ASC").
		Offset(query.Page.Offset()).
		Limit(query.Page.PageSize).
		Find(&products).Error
	if err != nil {
		return ProductPage{}, fmt.Errorf("failed to list products: %w", err)
	}

	return ProductPage{
		Items:    products,
		Count:    count,
		Page:     max(query.Page.Page, 1),
		PageSize: query.Page.PageSize,
	}, nil
}

func applyProductFilter(db *gorm.DB, f ProductFilter) *gorm.DB {
	if f.Price != nil {
		db = db.Where("price = ?", *f.Price)
	}
	if f.PriceMin != nil {
		db = db.Where("price >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		db = db.Where("price <= ?", *f.PriceMax)
	}
	if f.Stock != nil {
		db = db.Where("stock = ?", *f.Stock)
	}
	if f.StockMin != nil {
		db = db.Where("stock >= ?", *f.StockMin)
	}
	if f.StockMax != nil {
		db = db.Where("stock <= ?", *f.StockMax)
	}
	if f.OwnerID != "" {
		db = db.Where("owner_id = ?", f.OwnerID)
	}
	for _, term := range f.SearchTerms() {
		escaped := escapeLike(term)
		db = db.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, escaped+"%", "%"+escaped+"%")
	}
	return db
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

// GetByID retrieves a single product by its ID, with owner and ordered images.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.withRelations(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product, assigning id and sku when absent.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	prepareForCreate(product)
	if err := r.db.WithContext(ctx).Omit("Owner", "Images").Create(product).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sku %s: %w", product.SKU, ErrDuplicateSKU)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update writes the mutable columns of product. Owner and creation time are never touched.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"stock":       product.Stock,
			"sku":         product.SKU,
			"updated_at":  product.UpdatedAt,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("sku %s: %w", product.SKU, ErrDuplicateSKU)
		}
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a product and its images in one transaction.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return fmt.Errorf("failed to delete images of product %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// AddImage attaches an image row to an existing product.
func (r *GORMProductRepository) AddImage(ctx context.Context, image *models.ProductImage) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(image).Error; err != nil {
		return fmt.Errorf("failed to add image to product %s: %w", image.ProductID, err)
	}
	return nil
}

// ListImages returns the images of a product in display order.
func (r *GORMProductRepository) ListImages(ctx context.Context, productID string) ([]models.ProductImage, error) {
	var images []models.ProductImage
	if err := orderedImages(r.db.WithContext(ctx)).Where("product_id = ?", productID).Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to list images of product %s: %w", productID, err)
	}
	return images, nil
}

type statisticsRow struct {
	TotalProducts int64
	AveragePrice  decimal.NullDecimal
	TotalStock    int64
}

// Statistics aggregates count, average price and total stock over all products.
func (r *GORMProductRepository) Statistics(ctx context.Context) (models.ProductStatistics, error) {
	var row statisticsRow
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("COUNT(*) AS total_products, AVG(price) AS average_price, COALESCE(SUM(stock), 0) AS total_stock").
		Scan(&row).Error
	if err != nil {
		return models.ProductStatistics{}, fmt.Errorf("failed to compute product statistics: %w", err)
	}

	stats := models.ProductStatistics{
		TotalProducts: row.TotalProducts,
		TotalStock:    row.TotalStock,
	}
	if row.AveragePrice.Valid {
		avg := row.AveragePrice.Decimal.Round(2)
		stats.AveragePrice = &avg
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
