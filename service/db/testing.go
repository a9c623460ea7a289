package db

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestStore wraps a Store with test cleanup functionality.
type TestStore struct {
	*Store
	pool *pgxpool.Pool
}

// NewTestStore creates a Store connected to the test database named by
// TEST_DATABASE_URL. Tests that need a real database are skipped when the
// variable is unset so the rest of the suite runs anywhere.
func NewTestStore(t *testing.T) *TestStore {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database test")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("failed to ping test database: %v", err)
	}

	if _, err := pool.Exec(context.Background(), SchemaSQL); err != nil {
		pool.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &TestStore{
		Store: NewStore(pool),
		pool:  pool,
	}
}

// Close closes the database connection pool.
func (ts *TestStore) Close() {
	ts.pool.Close()
}

// Cleanup removes all data from test tables. Call between test cases to
// ensure clean state.
func (ts *TestStore) Cleanup(t *testing.T) {
	t.Helper()

	if _, err := ts.pool.Exec(context.Background(), "TRUNCATE TABLE txns"); err != nil {
		t.Fatalf("failed to clean up test database: %v", err)
	}
}
