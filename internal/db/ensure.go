package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
)

// maintenanceURL points dsn at the built-in "postgres" database and returns
// the name of the database it originally targeted.
func maintenanceURL(dsn string) (string, string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", "", fmt.Errorf("DATABASE_URL must be a postgres:// url, got %q", u.Scheme)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", "", fmt.Errorf("DATABASE_URL has no database name")
	}
	u.Path = "/postgres"
	return u.String(), name, nil
}

// EnsureDatabase creates the database named in dsn when it does not exist.
func EnsureDatabase(ctx context.Context, dsn string) (bool, error) {
	adminURL, name, err := maintenanceURL(dsn)
	if err != nil {
		return false, err
	}

	conninfo, err := pq.ParseURL(adminURL)
	if err != nil {
		return false, fmt.Errorf("parse maintenance url: %w", err)
	}

	sqlDB, err := sql.Open("postgres", conninfo)
	if err != nil {
		return false, fmt.Errorf("open maintenance connection: %w", err)
	}
	defer sqlDB.Close()

	var exists bool
	if err := sqlDB.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup database %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	if _, err := sqlDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		var pqErr *pq.Error
		// lost a race with another instance creating it
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return false, nil
		}
		return false, fmt.Errorf("create database %s: %w", name, err)
	}
	return true, nil
}
