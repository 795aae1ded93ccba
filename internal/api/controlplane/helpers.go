package controlplane

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/core/ports"
	"github.com/tjfontaine/automation-orchestrator/internal/intake"
	"github.com/tjfontaine/automation-orchestrator/internal/server"
)

const maxPageLimit = 200

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

func errNotFound(msg string) error { return &notFoundError{msg: msg} }

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var (
		bad      *badRequestError
		notFound *notFoundError
	)
	status := domain.HTTPStatusCode(err)
	errType := string(domain.TypeOf(err))
	switch {
	case errors.As(err, &bad):
		status, errType = http.StatusBadRequest, "invalid_request"
	case errors.As(err, &notFound):
		status, errType = http.StatusNotFound, string(domain.ErrorTypeNotFound)
	case errors.Is(err, intake.ErrQueueFull):
		status, errType = http.StatusServiceUnavailable, "queue_full"
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Type: errType, Message: msg}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &badRequestError{msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func parsePage(r *http.Request) ports.Page {
	page := ports.Page{}
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= maxPageLimit {
			page.Limit = v
		}
	}
	if q := r.URL.Query().Get("offset"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v >= 0 {
			page.Offset = v
		}
	}
	return page
}

func parseFilter(r *http.Request) (ports.InteractionFilter, error) {
	q := r.URL.Query()
	f := ports.InteractionFilter{
		Status:     domain.InteractionStatus(q.Get("status")),
		Intent:     domain.Intent(q.Get("intent")),
		SubAgent:   q.Get("sub_agent"),
		EventType:  domain.EventType(q.Get("event_type")),
		UserID:     q.Get("user_id"),
		BookingID:  q.Get("booking_id"),
		ProviderID: q.Get("provider_id"),
		EscrowID:   q.Get("escrow_id"),
	}
	if v := q.Get("escalated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &badRequestError{msg: fmt.Sprintf("invalid escalated %q", v)}
		}
		f.Escalated = &b
	}
	tr, err := parseTimeRange(r)
	if err != nil {
		return f, err
	}
	f.From, f.To = tr.From, tr.To
	return f, nil
}

func parseTimeRange(r *http.Request) (ports.TimeRange, error) {
	var tr ports.TimeRange
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &tr.From}, {"to", &tr.To}} {
		v := r.URL.Query().Get(p.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return tr, &badRequestError{msg: fmt.Sprintf("invalid %s %q: want RFC 3339", p.key, v)}
		}
		*p.dst = t
	}
	return tr, nil
}

func listResponse(page *ports.InteractionPage) InteractionListResponse {
	items := page.Items
	if items == nil {
		items = []*domain.InteractionSummary{}
	}
	return InteractionListResponse{
		Interactions: items,
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       page.Skip,
	}
}
