package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
)

const topWorkflowsLimit = 10

// Store is an in-memory implementation of ports.InteractionStore. Values
// are cloned on the way in and out so callers never share state with it.
type Store struct {
	mu           sync.RWMutex
	interactions map[string]*domain.Interaction
	events       map[string][]*domain.InteractionEvent
}

var _ ports.InteractionStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		interactions: make(map[string]*domain.Interaction),
		events:       make(map[string][]*domain.InteractionEvent),
	}
}

func (s *Store) CreateInteraction(ctx context.Context, interaction *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.interactions[interaction.ID]; exists {
		return fmt.Errorf("interaction %s already exists", interaction.ID)
	}

	interaction.Version = 1
	s.interactions[interaction.ID] = interaction.Clone()
	return nil
}

func (s *Store) GetInteraction(ctx context.Context, id string) (*domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interaction, exists := s.interactions[id]
	if !exists {
		return nil, &domain.InteractionNotFoundError{ID: id}
	}
	return interaction.Clone(), nil
}

func (s *Store) UpdateInteraction(ctx context.Context, interaction *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.interactions[interaction.ID]
	if !exists {
		return &domain.InteractionNotFoundError{ID: interaction.ID}
	}
	if current.Version != interaction.Version {
		return fmt.Errorf("update interaction %s at version %d: %w", interaction.ID, interaction.Version, domain.ErrVersionConflict)
	}

	interaction.Version++
	s.interactions[interaction.ID] = interaction.Clone()
	return nil
}

func (s *Store) ListInteractions(ctx context.Context, filter ports.InteractionFilter, page ports.Page) (*ports.InteractionPage, error) {
	page = page.Normalize()

	s.mu.RLock()
	matched := make([]*domain.Interaction, 0, len(s.interactions))
	for _, i := range s.interactions {
		if filter.Matches(i) {
			matched = append(matched, i)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(a, b int) bool {
		if !matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].CreatedAt.After(matched[b].CreatedAt)
		}
		return matched[a].ID < matched[b].ID
	})

	result := &ports.InteractionPage{
		Items: []*domain.InteractionSummary{},
		Total: len(matched),
		Limit: page.Limit,
		Skip:  page.Offset,
	}
	if page.Offset >= len(matched) {
		return result, nil
	}
	end := page.Offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	for _, i := range matched[page.Offset:end] {
		result.Items = append(result.Items, i.ToSummary())
	}
	return result, nil
}

func (s *Store) Analytics(ctx context.Context, r ports.TimeRange) (*domain.Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := &domain.Analytics{
		ByIntent:     make(map[domain.Intent]int),
		ByStatus:     make(map[domain.InteractionStatus]int),
		BySubAgent:   make(map[string]int),
		TopWorkflows: []domain.WorkflowCount{},
	}

	var (
		escalated int
		timed     int
		totalTime time.Duration
	)
	workflows := make(map[string]int)

	for _, i := range s.interactions {
		if !r.Contains(i.CreatedAt) {
			continue
		}
		a.Total++
		a.ByStatus[i.Status]++
		if i.Classification != nil {
			a.ByIntent[i.Classification.Intent]++
		}
		if i.AssignedSubAgent != "" {
			a.BySubAgent[i.AssignedSubAgent]++
		}
		if i.Escalation.Escalated {
			escalated++
		}
		if i.ProcessingTime > 0 {
			timed++
			totalTime += i.ProcessingTime
		}
		for _, w := range i.Workflows {
			workflows[w.WorkflowName]++
		}
	}

	if a.Total > 0 {
		a.EscalationRate = float64(escalated) / float64(a.Total)
	}
	if timed > 0 {
		a.AverageProcessingTime = totalTime / time.Duration(timed)
	}

	for name, count := range workflows {
		a.TopWorkflows = append(a.TopWorkflows, domain.WorkflowCount{Name: name, Count: count})
	}
	sort.Slice(a.TopWorkflows, func(x, y int) bool {
		if a.TopWorkflows[x].Count != a.TopWorkflows[y].Count {
			return a.TopWorkflows[x].Count > a.TopWorkflows[y].Count
		}
		return a.TopWorkflows[x].Name < a.TopWorkflows[y].Name
	})
	if len(a.TopWorkflows) > topWorkflowsLimit {
		a.TopWorkflows = a.TopWorkflows[:topWorkflowsLimit]
	}

	return a, nil
}

func (s *Store) AppendInteractionEvent(ctx context.Context, event *domain.InteractionEvent) error {
	if event == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.events[event.InteractionID] = append(s.events[event.InteractionID], &copied)
	return nil
}

func (s *Store) ListInteractionEvents(ctx context.Context, interactionID string) ([]*domain.InteractionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[interactionID]
	out := make([]*domain.InteractionEvent, 0, len(stored))
	for _, e := range stored {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
