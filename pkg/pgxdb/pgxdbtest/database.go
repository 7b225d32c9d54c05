package pgxdbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/require"
)

// CreateTestDatabase creates a test database with migrations applied.
// Returns the connection pool and database URL for further connections.
func CreateTestDatabase(t *testing.T, migrationsDir string) (*pgxpool.Pool, string) {
	t.Helper()

	config := pgtestdb.Config{
		DriverName: "pgx",
		User:       "stakeflow",
		Password:   "stakeflow",
		Host:       "localhost",
		Port:       "5432",
		Options:    "sslmode=disable",
	}

	// Set up sql-migrate migrator
	source := &migrate.FileMigrationSource{
		Dir: migrationsDir,
	}
	migrationSet := &migrate.MigrationSet{
		TableName: "schema_migrations",
	}
	migrator := sqlmigrator.New(source, migrationSet)

	// Create test database and get its config
	dbConfig := pgtestdb.Custom(t, config, migrator)
	dbURL := dbConfig.URL()

	t.Logf("testdbconf: %s", dbURL)

	pool, err := createTestConnection(t.Context(), dbURL)
	require.NoError(t, err)

	return pool, dbURL
}

// createTestConnection creates a small pool with short lifecycles so test
// databases fail fast and release connections quickly.
func createTestConnection(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, err
	}

	config.MinConns = 1
	config.MaxConns = 2
	config.MaxConnLifetime = 10 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, config)
}

// InitializeCheckpoint sets the indexer checkpoint for tests that resume
// from a known block.
func InitializeCheckpoint(t *testing.T, testDB *pgxpool.Pool, block uint64) {
	t.Helper()

	_, err := testDB.Exec(t.Context(), "INSERT INTO indexer_checkpoint (single_row, last_block) VALUES (TRUE, $1)", int64(block))
	require.NoError(t, err)
}

// InsertValidator registers a validator whose pool the indexer will watch.
func InsertValidator(t *testing.T, testDB *pgxpool.Pool, address, name, pool string, commission int) {
	t.Helper()

	_, err := testDB.Exec(t.Context(),
		"INSERT INTO validators (address, name, pool_address, commission) VALUES ($1, $2, $3, $4)",
		address, name, pool, commission)
	require.NoError(t, err)
}
