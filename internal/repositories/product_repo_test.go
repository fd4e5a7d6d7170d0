package repositories_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"myshop/internal/config"
	"myshop/internal/database"
	"myshop/internal/models"
	"myshop/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(context.Background(), config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	products repositories.ProductRepository
	users    repositories.UserRepository
	owner    *models.User
}

// implementations returns both stores wired against the same kind of owner.
func implementations(t *testing.T) map[string]func(t *testing.T) fixture {
	return map[string]func(t *testing.T) fixture{
		"gorm": func(t *testing.T) fixture {
			db := newTestDB(t)
			users := repositories.NewGORMUserRepository(db)
			owner := &models.User{Username: "alice", Password: "x"}
			require.NoError(t, users.Create(context.Background(), owner))
			return fixture{products: repositories.NewGORMProductRepository(db), users: users, owner: owner}
		},
		"memory": func(t *testing.T) fixture {
			db := newTestDB(t)
			users := repositories.NewGORMUserRepository(db)
			owner := &models.User{Username: "alice", Password: "x"}
			require.NoError(t, users.Create(context.Background(), owner))
			return fixture{products: repositories.NewMockProductRepository(users), users: users, owner: owner}
		},
	}
}

func seed(t *testing.T, repo repositories.ProductRepository, ownerID string, specs ...models.Product) []models.Product {
	t.Helper()
	out := make([]models.Product, 0, len(specs))
	for i := range specs {
		p := specs[i]
		p.OwnerID = ownerID
		require.NoError(t, repo.Create(context.Background(), &p))
		out = append(out, p)
		// keep created_at strictly increasing
		time.Sleep(2 * time.Millisecond)
	}
	return out
}

func product(name, description, price string, stock int) models.Product {
	return models.Product{Name: name, Description: description, Price: decimal.RequireFromString(price), Stock: stock}
}

func names(items []models.Product) []string {
	out := make([]string, 0, len(items))
	for _, p := range items {
		out = append(out, p.Name)
	}
	return out
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(i int) *int { return &i }

var skuPattern = regexp.MustCompile(`^PROD-[0-9A-F]{8}$`)

func TestProductRepository_CreateAssignsIDAndSKU(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			p := product("Lamp", "Desk lamp", "25.50", 4)
			p.OwnerID = f.owner.ID
			require.NoError(t, f.products.Create(ctx, &p))
			assert.NotEmpty(t, p.ID)
			assert.Regexp(t, skuPattern, p.SKU)

			got, err := f.products.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Lamp", got.Name)
			assert.True(t, got.Price.Equal(decimal.RequireFromString("25.50")))
			assert.Equal(t, p.SKU, got.SKU)
			require.NotNil(t, got.Owner)
			assert.Equal(t, "alice", got.Owner.Username)
			assert.NotNil(t, got.Images)
			assert.False(t, got.CreatedAt.IsZero())
		})
	}
}

func TestProductRepository_DuplicateSKU(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			a := product("A", "", "5.00", 1)
			a.SKU, a.OwnerID = "SKU-1", f.owner.ID
			require.NoError(t, f.products.Create(ctx, &a))

			b := product("B", "", "5.00", 1)
			b.SKU, b.OwnerID = "SKU-1", f.owner.ID
			err := f.products.Create(ctx, &b)
			assert.ErrorIs(t, err, repositories.ErrDuplicateSKU)

			c := product("C", "", "5.00", 1)
			c.SKU, c.OwnerID = "SKU-2", f.owner.ID
			require.NoError(t, f.products.Create(ctx, &c))
			c.SKU = "SKU-1"
			assert.ErrorIs(t, f.products.Update(ctx, &c), repositories.ErrDuplicateSKU)
		})
	}
}

func TestProductRepository_NotFound(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			_, err := f.products.GetByID(ctx, "nope")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
			assert.ErrorIs(t, f.products.Update(ctx, &models.Product{ID: "nope", Name: "x"}), repositories.ErrNotFound)
			assert.ErrorIs(t, f.products.Delete(ctx, "nope"), repositories.ErrNotFound)
		})
	}
}

func TestProductRepository_UpdateKeepsOwner(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			p := seed(t, f.products, f.owner.ID, product("Lamp", "", "25.00", 4))[0]

			p.Name = "Lamp v2"
			p.Stock = 9
			p.OwnerID = "someone-else"
			require.NoError(t, f.products.Update(ctx, &p))

			got, err := f.products.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Lamp v2", got.Name)
			assert.Equal(t, 9, got.Stock)
			assert.Equal(t, f.owner.ID, got.OwnerID)
		})
	}
}

func TestProductRepository_ListFiltersAndOrdering(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			seed(t, f.products, f.owner.ID,
				product("Laptop", "High performance laptop", "1200.00", 10),
				product("Monitor", "27 inch display", "300.00", 5),
				product("Keyboard", "Mechanical keyboard", "75.00", 25),
				product("Mouse", "Ergonomic wireless mouse", "25.00", 50),
				product("Desk", "Standing desk with laptop tray", "500.00", 2),
			)

			page, err := f.products.List(ctx, repositories.ProductQuery{
				Filter:   repositories.ProductFilter{PriceMin: decPtr("100"), PriceMax: decPtr("1000")},
				Ordering: repositories.Ordering{Field: repositories.OrderByPrice},
				Page:     repositories.PageRequest{Page: 1, PageSize: 10},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"Monitor", "Desk"}, names(page.Items))
			assert.EqualValues(t, 2, page.Count)

			page, err = f.products.List(ctx, repositories.ProductQuery{
				Filter:   repositories.ProductFilter{StockMin: intPtr(5), StockMax: intPtr(25)},
				Ordering: repositories.Ordering{Field: repositories.OrderByStock, Desc: true},
				Page:     repositories.PageRequest{Page: 1, PageSize: 10},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"Keyboard", "Laptop", "Monitor"}, names(page.Items))

			page, err = f.products.List(ctx, repositories.ProductQuery{
				Filter: repositories.ProductFilter{Price: decPtr("75"), Stock: intPtr(25), OwnerID: f.owner.ID},
				Page:   repositories.PageRequest{Page: 1, PageSize: 10},
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"Keyboard"}, names(page.Items))

			page, err = f.products.List(ctx, repositories.ProductQuery{
				Filter: repositories.ProductFilter{OwnerID: "stranger"},
				Page:   repositories.PageRequest{Page: 1, PageSize: 10},
			})
			require.NoError(t, err)
			assert.Empty(t, page.Items)

			// default ordering is newest first
			page, err = f.products.List(ctx, repositories.ProductQuery{Page: repositories.PageRequest{Page: 1, PageSize: 10}})
			require.NoError(t, err)
			assert.Equal(t, []string{"Desk", "Mouse", "Keyboard", "Monitor", "Laptop"}, names(page.Items))
		})
	}
}

func TestProductRepository_Search(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			seed(t, f.products, f.owner.ID,
				product("Laptop", "High performance laptop", "1200.00", 10),
				product("Desk", "Standing desk with laptop tray", "500.00", 2),
				product("Gaming Mouse", "RGB mouse", "45.00", 20),
				product("Pad 100%", "Mouse pad", "12.00", 30),
			)

			search := func(term string) []string {
				page, err := f.products.List(ctx, repositories.ProductQuery{
					Filter:   repositories.ProductFilter{Search: term},
					Ordering: repositories.Ordering{Field: repositories.OrderByPrice},
					Page:     repositories.PageRequest{Page: 1, PageSize: 10},
				})
				require.NoError(t, err)
				return names(page.Items)
			}

			// name prefix or description substring, case-insensitive
			assert.Equal(t, []string{"Desk", "Laptop"}, search("LAPTOP"))
			// "mouse" is not a name prefix of "Gaming Mouse" but is in both descriptions
			assert.Equal(t, []string{"Pad 100%", "Gaming Mouse"}, search("mouse"))
			// every term must match
			assert.Equal(t, []string{"Desk"}, search("laptop tray"))
			assert.Equal(t, []string{"Pad 100%"}, search("pad"))
			// LIKE wildcards are literal
			assert.Empty(t, search("%"))
			assert.Empty(t, search("_"))
		})
	}
}

func TestProductRepository_Pagination(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				seed(t, f.products, f.owner.ID, product("Item", "", "10.00", i+1))
			}

			query := repositories.ProductQuery{
				Ordering: repositories.Ordering{Field: repositories.OrderByStock},
				Page:     repositories.PageRequest{Page: 1, PageSize: 2},
			}
			page, err := f.products.List(ctx, query)
			require.NoError(t, err)
			assert.EqualValues(t, 5, page.Count)
			assert.Len(t, page.Items, 2)
			assert.True(t, page.HasNext())
			assert.False(t, page.HasPrevious())

			query.Page.Page = 3
			page, err = f.products.List(ctx, query)
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, 5, page.Items[0].Stock)
			assert.False(t, page.HasNext())
			assert.True(t, page.HasPrevious())
		})
	}
}

func TestProductRepository_ImagesOrderAndCascade(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			p := seed(t, f.products, f.owner.ID, product("Lamp", "", "25.00", 4))[0]

			base := time.Now().UTC().Add(-time.Hour)
			images := []models.ProductImage{
				{ProductID: p.ID, Image: "products/late.png", Order: 1, UploadedAt: base.Add(2 * time.Minute)},
				{ProductID: p.ID, Image: "products/old.png", Order: 0, UploadedAt: base},
				{ProductID: p.ID, Image: "products/new.png", Order: 0, UploadedAt: base.Add(time.Minute)},
				{ProductID: p.ID, Image: "products/primary.png", Order: 0, IsPrimary: true, UploadedAt: base},
			}
			for i := range images {
				require.NoError(t, f.products.AddImage(ctx, &images[i]))
				assert.NotEmpty(t, images[i].ID)
			}

			listed, err := f.products.ListImages(ctx, p.ID)
			require.NoError(t, err)
			var paths []string
			for _, img := range listed {
				paths = append(paths, img.Image)
			}
			want := []string{"products/primary.png", "products/new.png", "products/old.png", "products/late.png"}
			assert.Equal(t, want, paths)

			got, err := f.products.GetByID(ctx, p.ID)
			require.NoError(t, err)
			require.Len(t, got.Images, 4)
			assert.Equal(t, "products/primary.png", got.Images[0].Image)

			require.NoError(t, f.products.Delete(ctx, p.ID))
			listed, err = f.products.ListImages(ctx, p.ID)
			require.NoError(t, err)
			assert.Empty(t, listed)
		})
	}
}

func TestProductRepository_Statistics(t *testing.T) {
	for name, setup := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			stats, err := f.products.Statistics(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 0, stats.TotalProducts)
			assert.Nil(t, stats.AveragePrice)
			assert.EqualValues(t, 0, stats.TotalStock)

			seed(t, f.products, f.owner.ID,
				product("A", "", "10.00", 1),
				product("B", "", "20.00", 2),
				product("C", "", "30.01", 3),
			)
			stats, err = f.products.Statistics(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 3, stats.TotalProducts)
			require.NotNil(t, stats.AveragePrice)
			assert.True(t, stats.AveragePrice.Equal(decimal.RequireFromString("20")), stats.AveragePrice.String())
			assert.EqualValues(t, 6, stats.TotalStock)
		})
	}
}

func TestMockProductRepository_AddImageUnknownProduct(t *testing.T) {
	repo := repositories.NewMockProductRepository(nil)
	err := repo.AddImage(context.Background(), &models.ProductImage{ProductID: "ghost"})
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestParseOrdering(t *testing.T) {
	o, ok := repositories.ParseOrdering("-price")
	assert.True(t, ok)
	assert.Equal(t, repositories.Ordering{Field: "price", Desc: true}, o)
	assert.Equal(t, "-price", o.String())

	o, ok = repositories.ParseOrdering("stock")
	assert.True(t, ok)
	assert.Equal(t, "stock", o.String())

	o, ok = repositories.ParseOrdering("name")
	assert.False(t, ok)
	assert.Equal(t, repositories.DefaultOrdering, o)
}

func TestGenerateSKU(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		sku := repositories.GenerateSKU()
		assert.Regexp(t, skuPattern, sku)
		seen[sku] = true
	}
	assert.Len(t, seen, 50)
}
