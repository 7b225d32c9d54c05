// Package intentstore keeps unstake intents on the local file system.
package intentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/screwyprof/stakeflow/pkg/starknet"
	"github.com/screwyprof/stakeflow/staking"
)

// Sentinel errors for file store operations
var (
	ErrEmptyAccount = errors.New("account address is empty")
	ErrReadFailed   = errors.New("failed to read intents")
	ErrWriteFailed  = errors.New("failed to write intents")
)

const filePerm = 0o600

// FileStore stores one JSON file per normalised account address.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// New creates a FileStore rooted at dir, creating it if needed.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return &FileStore{dir: dir}, nil
}

// List returns the account's intents in insertion order.
func (s *FileStore) List(ctx context.Context, account string) ([]staking.UnstakeIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(account)
}

// Add stores an intent, replacing any previous intent for the same pool.
func (s *FileStore) Add(ctx context.Context, account string, intent staking.UnstakeIntent) error {
	return s.update(ctx, account, func(intents []staking.UnstakeIntent) []staking.UnstakeIntent {
		intents = withoutPool(intents, intent.PoolAddress)
		return append(intents, intent)
	})
}

// Remove drops the intent for pool; removing a missing intent is not an error.
func (s *FileStore) Remove(ctx context.Context, account, pool string) error {
	return s.update(ctx, account, func(intents []staking.UnstakeIntent) []staking.UnstakeIntent {
		return withoutPool(intents, pool)
	})
}

func (s *FileStore) update(ctx context.Context, account string, fn func([]staking.UnstakeIntent) []staking.UnstakeIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	intents, err := s.load(account)
	if err != nil {
		return err
	}

	return s.save(account, fn(intents))
}

func (s *FileStore) load(account string) ([]staking.UnstakeIntent, error) {
	path, err := s.path(account)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []staking.UnstakeIntent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	var intents []staking.UnstakeIntent
	if err := json.Unmarshal(data, &intents); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFailed, path, err)
	}
	if intents == nil {
		intents = []staking.UnstakeIntent{}
	}
	return intents, nil
}

// save replaces the account file atomically via a temp file and rename.
func (s *FileStore) save(account string, intents []staking.UnstakeIntent) error {
	path, err := s.path(account)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(intents, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".intents-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (s *FileStore) path(account string) (string, error) {
	key := starknet.NormalizeAddress(account)
	if key == "" {
		return "", ErrEmptyAccount
	}
	key = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, key+".json"), nil
}

func withoutPool(intents []staking.UnstakeIntent, pool string) []staking.UnstakeIntent {
	kept := intents[:0]
	for _, intent := range intents {
		if !starknet.SameAddress(intent.PoolAddress, pool) {
			kept = append(kept, intent)
		}
	}
	return kept
}
