package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_api/internal/models"
)

func TestOpenSQLite_MigrateIsIdempotent(t *testing.T) {
	gdb, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	require.NoError(t, Migrate(gdb))
	require.NoError(t, gdb.Create(&models.Product{Name: "kept"}).Error)
	require.NoError(t, Migrate(gdb))

	var n int64
	require.NoError(t, gdb.Model(&models.Product{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.True(t, gdb.Migrator().HasTable(&models.User{}))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), DriverSQLite, "")
	require.Error(t, err)

	_, err = Open(context.Background(), "mysql", "dsn")
	require.Error(t, err)
}

func TestMaintenanceURL(t *testing.T) {
	u, name, err := maintenanceURL("postgres://user:pw@db:5432/catalog?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "catalog", name)
	assert.Equal(t, "postgres://user:pw@db:5432/postgres?sslmode=disable", u)

	_, _, err = maintenanceURL("postgres://user:pw@db:5432/")
	require.Error(t, err)

	_, _, err = maintenanceURL("mysql://user:pw@db/catalog")
	require.Error(t, err)
}
