package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/peterldowns/pgtestdb"
	"github.com/peterldowns/pgtestdb/migrators/sqlmigrator"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/screwyprof/stakeflow/indexer"
	"github.com/screwyprof/stakeflow/indexer/store/pgxstore"
	"github.com/screwyprof/stakeflow/pkg/pgxdb"
)

// Migration constants
const (
	migrationsTableName = "schema_migrations"
	schemaHashPrefix    = "schema_only_"
	seededHashPrefix    = "seeded_demo_"
)

// SQL queries
const (
	initCheckpointSQL = `
		INSERT INTO indexer_checkpoint (single_row, last_block)
		VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO NOTHING`

	setCheckpointSQL = `
		INSERT INTO indexer_checkpoint (single_row, last_block)
		VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO UPDATE SET last_block = EXCLUDED.last_block`
)

// Migration-related errors
var (
	ErrMigrationExecution  = errors.New("migration execution failed")
	ErrCheckpointOperation = errors.New("checkpoint operation failed")
	ErrSeedFailed          = errors.New("demo seeding failed")
)

// SchemaMigrator applies only database schema migrations
// Used for production and tests that need schema-only setup
type SchemaMigrator struct {
	migrationsDir string
}

// NewSchemaMigrator creates a migrator that applies schema migrations only
func NewSchemaMigrator(migrationsDir string) *SchemaMigrator {
	return &SchemaMigrator{
		migrationsDir: migrationsDir,
	}
}

func (m *SchemaMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}
	return schemaHashPrefix + baseHash, nil
}

func (m *SchemaMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	return applyMigrations(db, m.migrationsDir)
}

// SeededMigrator applies schema migrations and indexes a deterministic demo
// chain into the template database.
// Used for web API tests that need realistic data to test against
type SeededMigrator struct {
	migrationsDir string
	demo          DemoConfig
	blockRange    uint64
	seedTimeout   time.Duration
}

// NewSeededMigrator creates a migrator that applies schema + seeds demo data
func NewSeededMigrator(migrationsDir string, demo DemoConfig, blockRange uint64, seedTimeout time.Duration) *SeededMigrator {
	return &SeededMigrator{
		migrationsDir: migrationsDir,
		demo:          demo,
		blockRange:    blockRange,
		seedTimeout:   seedTimeout,
	}
}

func (m *SeededMigrator) Hash() (string, error) {
	baseHash, err := migrationsHash(m.migrationsDir)
	if err != nil {
		return "", err
	}

	return seededHashPrefix + baseHash +
		"_" + strconv.Itoa(m.demo.Delegators) +
		"_" + strconv.FormatUint(m.demo.Seed, 10) +
		"_" + strconv.FormatUint(m.blockRange, 10), nil
}

func (m *SeededMigrator) Migrate(ctx context.Context, db *sql.DB, conf pgtestdb.Config) error {
	if err := applyMigrations(db, m.migrationsDir); err != nil {
		return err
	}

	seedCtx, cancel := context.WithTimeout(ctx, m.seedTimeout)
	defer cancel()

	pool, err := pgxdb.NewConnection(seedCtx, conf.URL())
	if err != nil {
		return err
	}
	defer pool.Close()

	return SeedDemo(seedCtx, pool, m.demo, m.blockRange)
}

// SeedDemo registers the demo validators and indexes the demo chain from
// block zero, returning once the backfill has caught up.
func SeedDemo(ctx context.Context, pool *pgxpool.Pool, demo DemoConfig, blockRange uint64) error {
	validators := DemoValidators()

	slog.InfoContext(ctx, "🌱 Seeding demo database with delegation data",
		"validators", len(validators),
		"delegators", demo.Delegators,
		"blockRange", blockRange)

	if err := UpsertValidators(ctx, pool, validators); err != nil {
		return err
	}
	// Always restart from genesis so seeding is reproducible.
	if err := SetCheckpoint(ctx, pool, 0); err != nil {
		return err
	}

	seedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The pool is owned by the caller.
	store, _ := pgxstore.New(pool)
	service := indexer.NewService(
		NewDemoChain(validators, demo),
		store,
		indexer.WithBlockRange(blockRange),
	)

	events, done := service.Start(seedCtx)

	resultChan := make(chan error, 1)

	subscriberCloser := indexer.NewSubscriber(events,
		indexer.OnBackfillDone(func(e indexer.BackfillDone) {
			slog.InfoContext(ctx, "✅ Demo database seeding completed successfully",
				"events", e.TotalProcessed,
				"checkpoint", e.Checkpoint)
			resultChan <- nil
			cancel()
		}),
		indexer.OnBackfillError(func(e indexer.BackfillError) {
			resultChan <- e.Err
			cancel()
		}),
	)
	defer subscriberCloser()

	<-done

	select {
	case err := <-resultChan:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSeedFailed, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrSeedFailed, ctx.Err())
	}
}

// ApplyMigrations applies database migrations using sql-migrate with the provided pgx pool
func ApplyMigrations(pool *pgxpool.Pool, migrationsDir string) error {
	// Create sql.DB from the pgx pool for sql-migrate
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return applyMigrations(db, migrationsDir)
}

// InitializeCheckpoint initializes the indexer checkpoint if not already set
func InitializeCheckpoint(ctx context.Context, pool *pgxpool.Pool, block uint64) error {
	_, err := pool.Exec(ctx, initCheckpointSQL, int64(block))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointOperation, err)
	}
	return nil
}

// SetCheckpoint sets the indexer checkpoint, overwriting any existing value
func SetCheckpoint(ctx context.Context, pool *pgxpool.Pool, block uint64) error {
	_, err := pool.Exec(ctx, setCheckpointSQL, int64(block))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointOperation, err)
	}
	return nil
}

func migrationsHash(migrationsDir string) (string, error) {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	hash, err := sqlmigrator.New(source, migrationSet).Hash()
	if err != nil {
		return "", fmt.Errorf("failed to calculate migration hash for %s: %w", migrationsDir, err)
	}
	return hash, nil
}

// applyMigrations applies database migrations using sql-migrate
func applyMigrations(db *sql.DB, migrationsDir string) error {
	source := &migrate.FileMigrationSource{Dir: migrationsDir}
	migrationSet := &migrate.MigrationSet{TableName: migrationsTableName}

	_, err := migrationSet.Exec(db, "postgres", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationExecution, err)
	}
	return nil
}
