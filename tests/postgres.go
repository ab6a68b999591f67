package tests

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prior-it/tweb/postgres"
)

// DatabaseURL returns the postgres connection string from DATABASE_URL (optionally loaded from
// ../.env) and skips the test if it has not been set.
func DatabaseURL(t testing.TB) string {
	t.Helper()
	if err := godotenv.Load("../.env"); err != nil {
		t.Logf("Could not load the .env file: %v", err)
	}
	url := os.Getenv("DATABASE_URL")
	if len(url) == 0 {
		t.Skip("To test database functionality, set the DATABASE_URL env variable to a valid database")
	}
	return url
}

// DB returns a connection pool whose connections all use a fresh schema.
// The schema is deleted again when the test ends.
func DB(t testing.TB) *postgres.DB {
	t.Helper()
	url := DatabaseURL(t)
	ctx := context.Background()
	schema := "tweb_test_" + strings.ToLower(Faker.LetterN(10))

	admin, err := postgres.NewDB(ctx, url)
	if err != nil {
		t.Fatalf("cannot connect to the test database: %v", err)
	}
	if err := admin.SwitchSchema(ctx, schema); err != nil {
		t.Fatalf("cannot create test schema: %v", err)
	}

	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		t.Fatalf("invalid DATABASE_URL: %v", err)
	}
	config.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("cannot connect to the test database: %v", err)
	}
	db := &postgres.DB{Pool: pool}

	t.Cleanup(func() {
		db.Close()
		if err := admin.DeleteSchema(ctx, schema); err != nil {
			t.Logf("cannot delete test schema %q: %v", schema, err)
		}
		admin.Close()
	})
	return db
}
