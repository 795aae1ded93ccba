package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
)

// InteractionStore is the durable Interaction ledger.
type InteractionStore interface {
	// CreateInteraction saves a new interaction. Version is set to 1.
	CreateInteraction(ctx context.Context, interaction *domain.Interaction) error

	// GetInteraction retrieves an interaction by ID. Unknown IDs return
	// *domain.InteractionNotFoundError.
	GetInteraction(ctx context.Context, id string) (*domain.Interaction, error)

	// UpdateInteraction replaces an interaction if its Version matches the
	// stored one, then increments Version. A mismatch returns
	// domain.ErrVersionConflict.
	UpdateInteraction(ctx context.Context, interaction *domain.Interaction) error

	// ListInteractions lists interactions newest first with filtering and pagination
	ListInteractions(ctx context.Context, filter InteractionFilter, page Page) (*InteractionPage, error)

	// Analytics aggregates interactions created within r.
	Analytics(ctx context.Context, r TimeRange) (*domain.Analytics, error)

	// AppendInteractionEvent appends an auditable pipeline event for an interaction.
	AppendInteractionEvent(ctx context.Context, event *domain.InteractionEvent) error

	// ListInteractionEvents returns events for an interaction ordered by time.
	ListInteractionEvents(ctx context.Context, interactionID string) ([]*domain.InteractionEvent, error)

	// Close closes the storage connection
	Close() error
}

// InteractionFilter restricts ListInteractions. Zero fields match everything.
type InteractionFilter struct {
	Status     domain.InteractionStatus
	Intent     domain.Intent
	SubAgent   string
	Escalated  *bool
	EventType  domain.EventType
	UserID     string
	BookingID  string
	ProviderID string
	EscrowID   string
	From       time.Time
	To         time.Time
}

// Matches reports whether i satisfies every set field of f.
func (f InteractionFilter) Matches(i *domain.Interaction) bool {
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	if f.Intent != "" && (i.Classification == nil || i.Classification.Intent != f.Intent) {
		return false
	}
	if f.SubAgent != "" && i.AssignedSubAgent != f.SubAgent {
		return false
	}
	if f.Escalated != nil && i.Escalation.Escalated != *f.Escalated {
		return false
	}
	if f.EventType != "" && i.Event.Type != f.EventType {
		return false
	}
	if f.UserID != "" && i.Event.UserID() != f.UserID {
		return false
	}
	if f.BookingID != "" && i.Event.BookingID() != f.BookingID {
		return false
	}
	if f.ProviderID != "" && i.Event.ProviderID() != f.ProviderID {
		return false
	}
	if f.EscrowID != "" && i.Event.EscrowID() != f.EscrowID {
		return false
	}
	return TimeRange{From: f.From, To: f.To}.Contains(i.CreatedAt)
}

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageLimit is used when Page.Limit is zero.
const DefaultPageLimit = 50

// Normalize fills defaults and clamps negatives.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// InteractionPage is one page of ListInteractions.
type InteractionPage struct {
	Items []*domain.InteractionSummary `json:"items"`
	Total int                          `json:"total"`
	Limit int                          `json:"limit"`
	Skip  int                          `json:"offset"`
}

// TimeRange is a half-open [From, To) interval. Zero bounds are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside r.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}
