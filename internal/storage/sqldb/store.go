package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/storage/dialect"
)

// topWorkflowsLimit bounds Analytics.TopWorkflows.
const topWorkflowsLimit = 10

// Store is a SQL implementation of ports.InteractionStore that supports
// multiple database dialects. The full interaction is stored as a JSON
// document alongside denormalized columns used for filtering.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.InteractionStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.Name() == string(dialect.SQLite) {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	text := s.dialect.TextType()
	bigint := s.dialect.BigIntType()
	boolean := s.dialect.BooleanType()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id ` + text + ` PRIMARY KEY,
			event_type ` + text + ` NOT NULL,
			source ` + text + ` NOT NULL,
			intent ` + text + ` NOT NULL DEFAULT '',
			risk_level ` + text + ` NOT NULL DEFAULT '',
			sub_agent ` + text + ` NOT NULL DEFAULT '',
			status ` + text + ` NOT NULL,
			escalated ` + boolean + ` NOT NULL,
			priority ` + text + ` NOT NULL DEFAULT '',
			user_id ` + text + ` NOT NULL DEFAULT '',
			booking_id ` + text + ` NOT NULL DEFAULT '',
			provider_id ` + text + ` NOT NULL DEFAULT '',
			escrow_id ` + text + ` NOT NULL DEFAULT '',
			processing_time_ns ` + bigint + ` NOT NULL DEFAULT 0,
			version ` + bigint + ` NOT NULL,
			document ` + text + ` NOT NULL,
			created_at ` + bigint + ` NOT NULL,
			updated_at ` + bigint + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS interaction_workflows (
			interaction_id ` + text + ` NOT NULL,
			seq ` + bigint + ` NOT NULL,
			workflow_name ` + text + ` NOT NULL,
			workflow_id ` + text + ` NOT NULL,
			status ` + text + ` NOT NULL,
			started_at ` + bigint + ` NOT NULL,
			PRIMARY KEY (interaction_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS interaction_events (
			id ` + text + ` PRIMARY KEY,
			interaction_id ` + text + ` NOT NULL,
			stage ` + text + ` NOT NULL,
			sub_agent ` + text + ` NOT NULL DEFAULT '',
			workflow ` + text + ` NOT NULL DEFAULT '',
			message ` + text + ` NOT NULL DEFAULT '',
			metadata ` + text + `,
			created_at ` + bigint + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_status ON interactions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_intent ON interactions(intent)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_sub_agent ON interactions(sub_agent)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_booking ON interactions(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interaction_workflows_name ON interaction_workflows(workflow_name)`,
		`CREATE INDEX IF NOT EXISTS idx_interaction_events_interaction ON interaction_events(interaction_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

type interactionRow struct {
	ID               string `db:"id"`
	EventType        string `db:"event_type"`
	Source           string `db:"source"`
	Intent           string `db:"intent"`
	RiskLevel        string `db:"risk_level"`
	SubAgent         string `db:"sub_agent"`
	Status           string `db:"status"`
	Escalated        bool   `db:"escalated"`
	Priority         string `db:"priority"`
	UserID           string `db:"user_id"`
	BookingID        string `db:"booking_id"`
	ProviderID       string `db:"provider_id"`
	EscrowID         string `db:"escrow_id"`
	ProcessingTimeNS int64  `db:"processing_time_ns"`
	Version          int64  `db:"version"`
	Document         string `db:"document"`
	CreatedAt        int64  `db:"created_at"`
	UpdatedAt        int64  `db:"updated_at"`
}

func toRow(i *domain.Interaction) (*interactionRow, error) {
	doc, err := json.Marshal(i)
	if err != nil {
		return nil, fmt.Errorf("marshal interaction: %w", err)
	}
	row := &interactionRow{
		ID:               i.ID,
		EventType:        string(i.Event.Type),
		Source:           string(i.Event.Source),
		SubAgent:         i.AssignedSubAgent,
		Status:           string(i.Status),
		Escalated:        i.Escalation.Escalated,
		Priority:         string(i.Escalation.Priority),
		UserID:           i.Event.UserID(),
		BookingID:        i.Event.BookingID(),
		ProviderID:       i.Event.ProviderID(),
		EscrowID:         i.Event.EscrowID(),
		ProcessingTimeNS: int64(i.ProcessingTime),
		Version:          i.Version,
		Document:         string(doc),
		CreatedAt:        i.CreatedAt.UnixNano(),
		UpdatedAt:        i.UpdatedAt.UnixNano(),
	}
	if i.Classification != nil {
		row.Intent = string(i.Classification.Intent)
		row.RiskLevel = string(i.Classification.RiskLevel)
	}
	return row, nil
}

func (r *interactionRow) toInteraction() (*domain.Interaction, error) {
	var i domain.Interaction
	if err := json.Unmarshal([]byte(r.Document), &i); err != nil {
		return nil, fmt.Errorf("unmarshal interaction %s: %w", r.ID, err)
	}
	i.Version = r.Version
	return &i, nil
}

func (s *Store) CreateInteraction(ctx context.Context, interaction *domain.Interaction) error {
	interaction.Version = 1
	row, err := toRow(interaction)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := s.dialect.Rebind(`INSERT INTO interactions (
		id, event_type, source, intent, risk_level, sub_agent, status, escalated, priority,
		user_id, booking_id, provider_id, escrow_id, processing_time_ns, version, document,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	if _, err := tx.ExecContext(ctx, query,
		row.ID, row.EventType, row.Source, row.Intent, row.RiskLevel, row.SubAgent, row.Status,
		row.Escalated, row.Priority, row.UserID, row.BookingID, row.ProviderID, row.EscrowID,
		row.ProcessingTimeNS, row.Version, row.Document, row.CreatedAt, row.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert interaction %s: %w", interaction.ID, err)
	}
	if err := s.replaceWorkflows(ctx, tx, interaction); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetInteraction(ctx context.Context, id string) (*domain.Interaction, error) {
	var row interactionRow
	err := s.db.GetContext(ctx, &row, s.dialect.Rebind(`SELECT * FROM interactions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.InteractionNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get interaction %s: %w", id, err)
	}
	return row.toInteraction()
}

func (s *Store) UpdateInteraction(ctx context.Context, interaction *domain.Interaction) error {
	expected := interaction.Version
	next := interaction.Clone()
	next.Version = expected + 1
	row, err := toRow(next)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := s.dialect.Rebind(`UPDATE interactions SET
		intent = ?, risk_level = ?, sub_agent = ?, status = ?, escalated = ?, priority = ?,
		processing_time_ns = ?, version = ?, document = ?, updated_at = ?
	WHERE id = ? AND version = ?`)

	res, err := tx.ExecContext(ctx, query,
		row.Intent, row.RiskLevel, row.SubAgent, row.Status, row.Escalated, row.Priority,
		row.ProcessingTimeNS, row.Version, row.Document, row.UpdatedAt,
		row.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("update interaction %s: %w", interaction.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update interaction %s: %w", interaction.ID, err)
	}
	if n == 0 {
		var count int
		if err := tx.GetContext(ctx, &count, s.dialect.Rebind(`SELECT COUNT(*) FROM interactions WHERE id = ?`), interaction.ID); err != nil {
			return fmt.Errorf("update interaction %s: %w", interaction.ID, err)
		}
		if count == 0 {
			return &domain.InteractionNotFoundError{ID: interaction.ID}
		}
		return fmt.Errorf("update interaction %s at version %d: %w", interaction.ID, expected, domain.ErrVersionConflict)
	}
	if err := s.replaceWorkflows(ctx, tx, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	interaction.Version = next.Version
	return nil
}

func (s *Store) replaceWorkflows(ctx context.Context, tx *sqlx.Tx, interaction *domain.Interaction) error {
	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM interaction_workflows WHERE interaction_id = ?`), interaction.ID); err != nil {
		return fmt.Errorf("clear workflows: %w", err)
	}
	insert := s.dialect.Rebind(`INSERT INTO interaction_workflows (
		interaction_id, seq, workflow_name, workflow_id, status, started_at
	) VALUES (?, ?, ?, ?, ?, ?)`)
	for seq, run := range interaction.Workflows {
		if _, err := tx.ExecContext(ctx, insert,
			interaction.ID, seq, run.WorkflowName, run.WorkflowID, string(run.Status), run.StartedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert workflow run: %w", err)
		}
	}
	return nil
}

// whereClause renders f as a SQL condition list with ? placeholders.
// Columns are qualified with prefix when it is non-empty.
func whereClause(f ports.InteractionFilter, prefix string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		conds = append(conds, prefix+column+" = ?")
		args = append(args, value)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.Intent != "" {
		add("intent", string(f.Intent))
	}
	if f.SubAgent != "" {
		add("sub_agent", f.SubAgent)
	}
	if f.Escalated != nil {
		add("escalated", *f.Escalated)
	}
	if f.EventType != "" {
		add("event_type", string(f.EventType))
	}
	if f.UserID != "" {
		add("user_id", f.UserID)
	}
	if f.BookingID != "" {
		add("booking_id", f.BookingID)
	}
	if f.ProviderID != "" {
		add("provider_id", f.ProviderID)
	}
	if f.EscrowID != "" {
		add("escrow_id", f.EscrowID)
	}
	if !f.From.IsZero() {
		conds = append(conds, prefix+"created_at >= ?")
		args = append(args, f.From.UnixNano())
	}
	if !f.To.IsZero() {
		conds = append(conds, prefix+"created_at < ?")
		args = append(args, f.To.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListInteractions(ctx context.Context, filter ports.InteractionFilter, page ports.Page) (*ports.InteractionPage, error) {
	page = page.Normalize()
	where, args := whereClause(filter, "")

	var total int
	if err := s.db.GetContext(ctx, &total, s.dialect.Rebind(`SELECT COUNT(*) FROM interactions`+where), args...); err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}

	var rows []interactionRow
	query := s.dialect.Rebind(`SELECT * FROM interactions` + where + ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &rows, query, append(args, page.Limit, page.Offset)...); err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}

	result := &ports.InteractionPage{
		Items: make([]*domain.InteractionSummary, 0, len(rows)),
		Total: total,
		Limit: page.Limit,
		Skip:  page.Offset,
	}
	for i := range rows {
		interaction, err := rows[i].toInteraction()
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, interaction.ToSummary())
	}
	return result, nil
}

type groupCount struct {
	Key   string `db:"k"`
	Count int    `db:"n"`
}

func (s *Store) groupBy(ctx context.Context, column, where string, args []any) ([]groupCount, error) {
	var out []groupCount
	query := s.dialect.Rebind(`SELECT ` + column + ` AS k, COUNT(*) AS n FROM interactions` + where + ` GROUP BY ` + column)
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("group interactions by %s: %w", column, err)
	}
	return out, nil
}

func (s *Store) Analytics(ctx context.Context, r ports.TimeRange) (*domain.Analytics, error) {
	filter := ports.InteractionFilter{From: r.From, To: r.To}
	where, args := whereClause(filter, "")

	a := &domain.Analytics{
		ByIntent:     make(map[domain.Intent]int),
		ByStatus:     make(map[domain.InteractionStatus]int),
		BySubAgent:   make(map[string]int),
		TopWorkflows: []domain.WorkflowCount{},
	}

	var totals struct {
		Total     int             `db:"total"`
		Escalated sql.NullInt64   `db:"escalated"`
		AvgNS     sql.NullFloat64 `db:"avg_ns"`
	}
	totalsQuery := `SELECT COUNT(*) AS total,
		SUM(CASE WHEN escalated THEN 1 ELSE 0 END) AS escalated,
		AVG(CASE WHEN processing_time_ns > 0 THEN processing_time_ns END) AS avg_ns
		FROM interactions` + where
	if err := s.db.GetContext(ctx, &totals, s.dialect.Rebind(totalsQuery), args...); err != nil {
		return nil, fmt.Errorf("aggregate interactions: %w", err)
	}
	a.Total = totals.Total
	if a.Total > 0 {
		a.EscalationRate = float64(totals.Escalated.Int64) / float64(a.Total)
	}
	if totals.AvgNS.Valid {
		a.AverageProcessingTime = time.Duration(totals.AvgNS.Float64)
	}

	byIntent, err := s.groupBy(ctx, "intent", where, args)
	if err != nil {
		return nil, err
	}
	for _, g := range byIntent {
		if g.Key != "" {
			a.ByIntent[domain.Intent(g.Key)] = g.Count
		}
	}
	byStatus, err := s.groupBy(ctx, "status", where, args)
	if err != nil {
		return nil, err
	}
	for _, g := range byStatus {
		a.ByStatus[domain.InteractionStatus(g.Key)] = g.Count
	}
	bySubAgent, err := s.groupBy(ctx, "sub_agent", where, args)
	if err != nil {
		return nil, err
	}
	for _, g := range bySubAgent {
		if g.Key != "" {
			a.BySubAgent[g.Key] = g.Count
		}
	}

	joinWhere, joinArgs := whereClause(filter, "i.")
	var top []groupCount
	topQuery := `SELECT w.workflow_name AS k, COUNT(*) AS n
		FROM interaction_workflows w JOIN interactions i ON i.id = w.interaction_id` + joinWhere + `
		GROUP BY w.workflow_name ORDER BY n DESC, k ASC LIMIT ?`
	if err := s.db.SelectContext(ctx, &top, s.dialect.Rebind(topQuery), append(joinArgs, topWorkflowsLimit)...); err != nil {
		return nil, fmt.Errorf("top workflows: %w", err)
	}
	for _, g := range top {
		a.TopWorkflows = append(a.TopWorkflows, domain.WorkflowCount{Name: g.Key, Count: g.Count})
	}

	return a, nil
}

// Interaction events (append-only)

type eventRow struct {
	ID            string         `db:"id"`
	InteractionID string         `db:"interaction_id"`
	Stage         string         `db:"stage"`
	SubAgent      string         `db:"sub_agent"`
	Workflow      string         `db:"workflow"`
	Message       string         `db:"message"`
	Metadata      sql.NullString `db:"metadata"`
	CreatedAt     int64          `db:"created_at"`
}

func (s *Store) AppendInteractionEvent(ctx context.Context, event *domain.InteractionEvent) error {
	if event == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		metadata = sql.NullString{String: string(event.Metadata), Valid: true}
	}

	query := s.dialect.Rebind(`INSERT INTO interaction_events (
		id, interaction_id, stage, sub_agent, workflow, message, metadata, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.InteractionID, string(event.Stage), event.SubAgent, event.Workflow,
		event.Message, metadata, event.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append interaction event: %w", err)
	}
	return nil
}

func (s *Store) ListInteractionEvents(ctx context.Context, interactionID string) ([]*domain.InteractionEvent, error) {
	if interactionID == "" {
		return []*domain.InteractionEvent{}, nil
	}

	var rows []eventRow
	query := s.dialect.Rebind(`SELECT * FROM interaction_events WHERE interaction_id = ? ORDER BY created_at ASC, id ASC`)
	if err := s.db.SelectContext(ctx, &rows, query, interactionID); err != nil {
		return nil, fmt.Errorf("list interaction events: %w", err)
	}

	events := make([]*domain.InteractionEvent, 0, len(rows))
	for _, r := range rows {
		evt := &domain.InteractionEvent{
			ID:            r.ID,
			InteractionID: r.InteractionID,
			Stage:         domain.Stage(r.Stage),
			SubAgent:      r.SubAgent,
			Workflow:      r.Workflow,
			Message:       r.Message,
			CreatedAt:     time.Unix(0, r.CreatedAt).UTC(),
		}
		if r.Metadata.Valid && r.Metadata.String != "" {
			evt.Metadata = json.RawMessage(r.Metadata.String)
		}
		events = append(events, evt)
	}
	return events, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
