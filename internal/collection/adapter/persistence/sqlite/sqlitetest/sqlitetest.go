// Package sqlitetest opens isolated in-memory databases for tests.
package sqlitetest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"content-sync/internal/collection/adapter/persistence/sqlite"

	"github.com/oklog/ulid/v2"
)

// GetTestDB opens a fresh shared-cache in-memory database. Every call gets a
// unique name, so tests never see each other's tables.
func GetTestDB(ctx context.Context) (*sql.DB, error) {
	uniqueName := ulid.Make().String()
	connStr := fmt.Sprintf("file:testdb_%s?mode=memory&cache=shared", uniqueName)

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, err
	}
	// One connection keeps shared-cache table locks out of concurrent tests.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewBackend returns a bootstrapped backend closed at the end of the test.
func NewBackend(t testing.TB) *sqlite.Backend {
	t.Helper()
	ctx := context.Background()
	db, err := GetTestDB(ctx)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	backend := sqlite.New(db, nil)
	if err := backend.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap test db: %v", err)
	}
	return backend
}
