package migrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/stakeflow/pkg/starknet"
)

// Validator registry errors
var (
	ErrValidatorsFile    = errors.New("failed to read validators file")
	ErrInvalidValidators = errors.New("invalid validators")
	ErrValidatorsUpsert  = errors.New("validators upsert failed")
)

const upsertValidatorSQL = `
	INSERT INTO validators (address, name, pool_address, commission)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (address) DO UPDATE SET
		name = EXCLUDED.name,
		pool_address = EXCLUDED.pool_address,
		commission = EXCLUDED.commission`

// ValidatorSeed is one entry of the validators file. Commission is in basis
// points.
type ValidatorSeed struct {
	Address     string `json:"address" validate:"required,hexadecimal"`
	Name        string `json:"name" validate:"required"`
	PoolAddress string `json:"poolAddress" validate:"required,hexadecimal"`
	Commission  int    `json:"commission" validate:"gte=0,lte=10000"`
}

var validate = validator.New()

// LoadValidators reads and validates a JSON array of validators.
func LoadValidators(path string) ([]ValidatorSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidatorsFile, err)
	}

	var seeds []ValidatorSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrValidatorsFile, path, err)
	}

	pools := make(map[string]string, len(seeds))
	for i := range seeds {
		if err := validate.Struct(seeds[i]); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidValidators, i, err)
		}

		seeds[i].Address = starknet.NormalizeAddress(seeds[i].Address)
		seeds[i].PoolAddress = starknet.NormalizeAddress(seeds[i].PoolAddress)

		if other, ok := pools[seeds[i].PoolAddress]; ok {
			return nil, fmt.Errorf("%w: pool %s shared by %s and %s", ErrInvalidValidators, seeds[i].PoolAddress, other, seeds[i].Name)
		}
		pools[seeds[i].PoolAddress] = seeds[i].Name
	}

	return seeds, nil
}

// UpsertValidators registers validators in one round trip.
func UpsertValidators(ctx context.Context, pool *pgxpool.Pool, seeds []ValidatorSeed) error {
	if len(seeds) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, v := range seeds {
		b.Queue(upsertValidatorSQL, v.Address, v.Name, v.PoolAddress, v.Commission)
	}

	if err := pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidatorsUpsert, err)
	}
	return nil
}
