package memory

import (
	"context"
	"testing"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) ports.InteractionStore {
		return New()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := New()
	ctx := context.Background()

	i := storagetest.NewInteraction(t, domain.EventCRMUpdate, nil)
	if err := store.CreateInteraction(ctx, i); err != nil {
		t.Fatalf("CreateInteraction() error = %v", err)
	}

	got, err := store.GetInteraction(ctx, i.ID)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	got.RecordAction("mutated outside the store", nil)

	again, err := store.GetInteraction(ctx, i.ID)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	if len(again.ActionsTaken) != 0 {
		t.Errorf("ActionsTaken = %d, want 0", len(again.ActionsTaken))
	}
}
