package credential

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) (string, error) {
	return "", errors.New("disk unavailable")
}
func (failingBackend) Put(context.Context, string, string) error { return errors.New("disk unavailable") }
func (failingBackend) Delete(context.Context, string) error      { return errors.New("disk unavailable") }

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	sqliteBackend, err := OpenSQLiteBackend(context.Background(), filepath.Join(dir, "nested", "creds.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteBackend err: %v", err)
	}
	t.Cleanup(func() { sqliteBackend.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   NewFileBackend(filepath.Join(dir, "nested", "creds.json")),
		"sqlite": sqliteBackend,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	values := []string{"abc123", "sk-live-0001", " padded ", "ключ"}

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend)

			if _, ok := store.Load(ctx); ok {
				t.Fatal("expected absent credential on fresh store")
			}

			for _, value := range values {
				if err := store.Save(ctx, value); err != nil {
					t.Fatalf("Save(%q) err: %v", value, err)
				}
				got, ok := store.Load(ctx)
				if !ok || got != value {
					t.Fatalf("Load after Save(%q) = %q, %v", value, got, ok)
				}
			}

			store.Clear(ctx)
			if _, ok := store.Load(ctx); ok {
				t.Fatal("expected absent credential after Clear")
			}
			// Clear is idempotent.
			store.Clear(ctx)
		})
	}
}

func TestStoreRejectsBlankCredential(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	for _, value := range []string{"", "   ", "\t\n"} {
		if err := store.Save(context.Background(), value); !errors.Is(err, ErrEmptyCredential) {
			t.Fatalf("Save(%q) expected ErrEmptyCredential, got %v", value, err)
		}
	}
	if _, ok := store.Load(context.Background()); ok {
		t.Fatal("blank credential must not be persisted")
	}
}

func TestStoreDegradesOnStorageFault(t *testing.T) {
	store := NewStore(failingBackend{})
	ctx := context.Background()

	if err := store.Save(ctx, "abc123"); err != nil {
		t.Fatalf("storage faults must not surface, got %v", err)
	}
	if _, ok := store.Load(ctx); ok {
		t.Fatal("unreadable storage must behave as absent")
	}
	store.Clear(ctx)
}

func TestFileBackendWritesUserOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	backend := NewFileBackend(path)
	if err := backend.Put(context.Background(), Key, "abc123"); err != nil {
		t.Fatalf("Put err: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat err: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestFileBackendCorruptFileIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}

	store := NewStore(NewFileBackend(path))
	if _, ok := store.Load(context.Background()); ok {
		t.Fatal("corrupt storage must behave as absent")
	}
}
