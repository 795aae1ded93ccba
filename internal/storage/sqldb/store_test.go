package sqldb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/storage/storagetest"
)

var memdbSeq atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memdbSeq.Add(1))
	store, err := NewSQLite(dsn)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	return store
}

func TestSQLDBStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) ports.InteractionStore {
		return newTestStore(t)
	})
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New(Config{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("New() error = nil, want unsupported driver error")
	}
}

func TestSQLDBStore_SchemaIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.initSchema(); err != nil {
		t.Fatalf("initSchema() second run error = %v", err)
	}
	if store.Dialect().Name() != "sqlite" {
		t.Errorf("Dialect().Name() = %q, want sqlite", store.Dialect().Name())
	}
}
