package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/product_api/internal/db"
	"github.com/Skotchmaster/product_api/internal/hash"
	"github.com/Skotchmaster/product_api/internal/models"
)

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func SeedUser(t *testing.T, gdb *gorm.DB, username, email, password, role string) *models.User {
	t.Helper()

	h, err := hash.HashPassword(password)
	require.NoError(t, err)

	u := &models.User{Username: username, Email: email, HashedPassword: h, Role: role}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func SeedProduct(t *testing.T, gdb *gorm.DB, name, description string) *models.Product {
	t.Helper()

	p := &models.Product{Name: name, Description: description, Price: 9.99, Quantity: 3, InStock: true}
	require.NoError(t, gdb.Create(p).Error)
	return p
}
