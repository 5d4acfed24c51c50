package pgstore

import (
	"context"
	"os"
	"strings"
	"testing"
)

const envDatabaseURL = "FOCUSLEDGER_TEST_POSTGRES_URL"

func TestMigrateIsIdempotent(test *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv(envDatabaseURL))
	if databaseURL == "" {
		test.Skipf("%s not set", envDatabaseURL)
	}
	ctx := context.Background()
	pool, err := Open(ctx, databaseURL)
	if err != nil {
		test.Fatalf("open: %v", err)
	}
	defer pool.Close()

	for attempt := 0; attempt < 2; attempt++ {
		if err := Migrate(ctx, pool); err != nil {
			test.Fatalf("migrate attempt %d: %v", attempt, err)
		}
	}
	version, err := CurrentVersion(ctx, pool)
	if err != nil {
		test.Fatalf("version: %v", err)
	}
	if version != SchemaVersion {
		test.Fatalf("expected version %d, got %d", SchemaVersion, version)
	}
}

func TestSchemaStatementsCoverEveryTable(test *testing.T) {
	test.Parallel()
	tables := []string{"treasury", "economy_config", "accounts", "daily_records", "payouts", "pets", "toys", "transactions"}
	for _, table := range tables {
		found := false
		for _, statement := range schemaStatements {
			if strings.Contains(statement, "create table if not exists "+table+" (") {
				found = true
				break
			}
		}
		if !found {
			test.Fatalf("expected a create statement for %s", table)
		}
	}
}
