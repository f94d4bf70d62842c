package testsupport

import (
	"testing"

	"mediavault/internal/config"
	"mediavault/internal/library"
)

// MustOpenStore opens the media index for a test config and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()
	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("open library store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
