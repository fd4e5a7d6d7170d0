package database_test

import (
	"context"
	"testing"

	"myshop/internal/config"
	"myshop/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	for _, table := range []string{"users", "user_profiles", "products", "product_images"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasColumn("product_images", "sort_order"))
	assert.NoError(t, database.Ping(ctx, db))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(context.Background(), "mysql", "dsn")
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}
