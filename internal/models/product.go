package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null;index"`
	Stock       int             `json:"stock" gorm:"not null;default:0;index"`
	SKU         string          `json:"sku" gorm:"type:varchar(50);uniqueIndex"`
	OwnerID     string          `json:"owner_id" gorm:"type:varchar(36);not null;index"`
	Owner       *User           `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Images      []ProductImage  `json:"images" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsAvailable reports whether the product has stock.
func (p Product) IsAvailable() bool {
	return p.Stock > 0
}

// TotalInventoryValue is price times stock.
func (p Product) TotalInventoryValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock)))
}

// ProductImage is one of the ordered images attached to a product.
type ProductImage struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID  string    `json:"product_id" gorm:"type:varchar(36);not null;index"`
	Image      string    `json:"image" gorm:"type:varchar(255);not null"`
	IsPrimary  bool      `json:"is_primary" gorm:"not null;default:false"`
	Order      int       `json:"order" gorm:"column:sort_order;not null;default:0"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}

// ProductStatistics are the aggregates served by the statistics endpoint.
type ProductStatistics struct {
	TotalProducts int64            `json:"total_products"`
	AveragePrice  *decimal.Decimal `json:"average_price"`
	TotalStock    int64            `json:"total_stock"`
}
