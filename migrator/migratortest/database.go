package migratortest

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakeflow/migrator"
)

// CreateIndexerTestDatabase creates a test database with migrations applied + indexer checkpoint initialized.
// This mirrors the production pattern: schema first, then checkpoint initialization.
// Returns the connection pool ready for use.
func CreateIndexerTestDatabase(t *testing.T, migrationsDir string, initialCheckpoint uint64) *pgxpool.Pool {
	t.Helper()

	migratorInstance := migrator.NewSchemaMigrator(migrationsDir)
	pool := createTestDatabaseWithMigrator(t, migratorInstance)

	err := migrator.InitializeCheckpoint(t.Context(), pool, initialCheckpoint)
	require.NoError(t, err)

	return pool
}

// CreateSeededTestDatabase creates a test database with migrations applied and
// the demo chain indexed. The seeded template is shared by every test using
// the same demo config.
func CreateSeededTestDatabase(t *testing.T, migrationsDir string, demo migrator.DemoConfig, blockRange uint64, seedTimeout time.Duration) *pgxpool.Pool {
	t.Helper()

	migratorInstance := migrator.NewSeededMigrator(migrationsDir, demo, blockRange, seedTimeout)
	return createTestDatabaseWithMigrator(t, migratorInstance)
}

// createTestDatabaseWithMigrator creates a test database using the provided migrator
func createTestDatabaseWithMigrator(t *testing.T, migratorInstance pgtestdb.Migrator) *pgxpool.Pool {
	t.Helper()

	config := createTestDatabaseConfig()

	dbConfig := pgtestdb.Custom(t, config, migratorInstance)

	pool, err := pgxpool.New(t.Context(), dbConfig.URL())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	t.Logf("testdbconf: %s", dbConfig.URL())

	return pool
}

// createTestDatabaseConfig creates the standard pgtestdb configuration for stakeflow tests
func createTestDatabaseConfig() pgtestdb.Config {
	return pgtestdb.Config{
		DriverName: "pgx",
		User:       "stakeflow",
		Password:   "stakeflow",
		Host:       "localhost",
		Port:       "5432",
		Options:    "sslmode=disable",
	}
}
