package persistence

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/domain/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB opens a file backed sqlite database with the schema migrated
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.AutoMigrate())
	return db.DB
}

func newTestOrder(t *testing.T, products ...int64) *order.Order {
	t.Helper()

	o, err := order.NewOrder(order.NewOrderNumber(fixedDay), order.Customer{Name: "Dana", Email: "dana@example.com"}, "1 Main St", "")
	require.NoError(t, err)
	for _, p := range products {
		_, err := o.AddItem(p, "Product", "SKU-"+strconv.FormatInt(p, 10), 2, decimal.RequireFromString("4.50"))
		require.NoError(t, err)
	}
	o.ClearDomainEvents()
	return o
}
