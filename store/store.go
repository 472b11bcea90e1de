// store/store.go
package store

import (
	"context"
	"fmt"

	"github.com/mwiater/gollamachat/config"
	"go.uber.org/zap"
)

// State is the persisted form of the conversation context: one record with
// one named field, overwritten wholesale on every save.
type State struct {
	Context string `json:"context"`
}

// Store persists a single conversation context string.
type Store interface {
	// Save overwrites the stored context.
	Save(ctx context.Context, history string) error
	// Load returns the stored context, or "" when nothing has been saved.
	Load(ctx context.Context) (string, error)
	// Clear removes the stored context. Clearing an empty store succeeds.
	Clear(ctx context.Context) error
	// Close releases connections held by the store.
	Close() error
	// Location describes where the context lives, for messages and logs.
	Location() string
}

// StorageError reports a failed read, write or removal of the persisted context.
type StorageError struct {
	// Op is "save", "load", "clear" or "open".
	Op       string
	Location string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// New opens the store selected by cfg.Backend.
func New(cfg config.HistoryConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Path, logger), nil
	case "redis":
		return NewRedisStore(cfg.Redis, logger), nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
