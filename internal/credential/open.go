package credential

import (
	"context"
	"fmt"

	"github.com/hopewhisperer/hope-whisperer/internal/config"
)

// Open builds the Store described by cfg. The returned func releases the
// backend.
func Open(ctx context.Context, cfg config.CredentialConfig) (*Store, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewStore(NewMemoryBackend()), func() {}, nil
	case config.BackendSQLite:
		backend, err := OpenSQLiteBackend(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return NewStore(backend), func() { _ = backend.Close() }, nil
	case config.BackendFile, "":
		return NewStore(NewFileBackend(cfg.Path)), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}
