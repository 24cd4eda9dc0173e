package credential

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hopewhisperer/hope-whisperer/internal/config"
)

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	cases := []config.CredentialConfig{
		{Backend: config.BackendMemory},
		{Backend: config.BackendFile, Path: filepath.Join(dir, "c.json")},
		{Backend: config.BackendSQLite, Path: filepath.Join(dir, "c.db")},
	}

	for _, cfg := range cases {
		store, closeFn, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Open(%s) err: %v", cfg.Backend, err)
		}
		if err := store.Save(context.Background(), "abc123"); err != nil {
			t.Fatalf("Save err: %v", err)
		}
		if got, ok := store.Load(context.Background()); !ok || got != "abc123" {
			t.Fatalf("%s: unexpected load %q %v", cfg.Backend, got, ok)
		}
		closeFn()
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, _, err := Open(context.Background(), config.CredentialConfig{Backend: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
