package testsupport

import (
	"context"
	"testing"

	"uplift/internal/config"
	"uplift/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewDataset stores a dataset for tests using the provided store.
func NewDataset(t testing.TB, st *store.Store, id, name string, csv []byte) *store.Dataset {
	t.Helper()

	ds, err := st.SaveDataset(context.Background(), id, name, csv)
	if err != nil {
		t.Fatalf("store.SaveDataset: %v", err)
	}
	return ds
}
