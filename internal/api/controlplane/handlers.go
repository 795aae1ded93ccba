package controlplane

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/automation-orchestrator/internal/core/domain"
	"github.com/tjfontaine/automation-orchestrator/internal/intake"
	"github.com/tjfontaine/automation-orchestrator/internal/server"
)

// SubmitEventRequest is the body of POST /api/events.
type SubmitEventRequest struct {
	Type    string               `json:"type"`
	Source  string               `json:"source"`
	Data    map[string]any       `json:"data,omitempty"`
	Context *domain.EventContext `json:"context,omitempty"`
}

// handleSubmitEvent serves POST /api/events. Type and source are both
// required; a body without either is rejected with 400 invalid_event.
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req SubmitEventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.svc.SubmitEvent(r.Context(), domain.RawEvent{
		Type:    req.Type,
		Source:  req.Source,
		Data:    req.Data,
		Context: req.Context,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	server.AddLogField(r.Context(), "interaction_id", res.InteractionID)
	writeJSON(w, http.StatusOK, res)
}

// InteractionListResponse is one page of interactions.
type InteractionListResponse struct {
	Interactions []*domain.InteractionSummary `json:"interactions"`
	Total        int                          `json:"total"`
	Limit        int                          `json:"limit"`
	Offset       int                          `json:"offset"`
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.svc.ListInteractions(r.Context(), filter, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(page))
}

func (s *Server) handleListEscalations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.svc.ListEscalated(r.Context(), filter, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(page))
}

func (s *Server) handleInteractionDetail(w http.ResponseWriter, r *http.Request) {
	in, err := s.svc.GetInteraction(r.Context(), chi.URLParam(r, "interaction_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleInteractionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "interaction_id")
	events, err := s.svc.InteractionEvents(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*domain.InteractionEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interaction_id": id,
		"events":         events,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	tr, err := parseTimeRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.svc.GetAnalytics(r.Context(), tr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// EscalationRequest is the body of the assign and resolve routes.
type EscalationRequest struct {
	OperatorID string `json:"operator_id"`
	Notes      string `json:"notes,omitempty"`
}

func (s *Server) handleAssignEscalation(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEscalation(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.svc.AssignEscalation(r.Context(), chi.URLParam(r, "interaction_id"), req.OperatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleResolveEscalation(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEscalation(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.svc.ResolveEscalation(r.Context(), chi.URLParam(r, "interaction_id"), req.OperatorID, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func decodeEscalation(w http.ResponseWriter, r *http.Request) (*EscalationRequest, error) {
	var req EscalationRequest
	if err := decodeBody(w, r, &req); err != nil {
		return nil, err
	}
	if req.OperatorID == "" {
		return nil, &badRequestError{msg: "operator_id is required"}
	}
	return &req, nil
}

// AcceptedResponse acknowledges an event queued for asynchronous processing.
type AcceptedResponse struct {
	InteractionID string                   `json:"interaction_id"`
	Status        domain.InteractionStatus `json:"status"`
}

func (s *Server) handleSourceEvent(w http.ResponseWriter, r *http.Request) {
	var p intake.Payload
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		in  *domain.Interaction
		err error
	)
	switch domain.EventSource(chi.URLParam(r, "source")) {
	case domain.SourceApp:
		in, err = s.adapters.OnAppEvent(r.Context(), p)
	case domain.SourcePOS:
		in, err = s.adapters.OnPosEvent(r.Context(), p)
	case domain.SourcePayments:
		in, err = s.adapters.OnPaymentEvent(r.Context(), p)
	case domain.SourceGPS:
		in, err = s.adapters.OnGpsEvent(r.Context(), p)
	case domain.SourceCRM:
		in, err = s.adapters.OnCrmEvent(r.Context(), p)
	case domain.SourceWebhook:
		in, err = s.adapters.OnWebhookEvent(r.Context(), p)
	default:
		writeError(w, r, errNotFound("unknown source "+chi.URLParam(r, "source")))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	server.AddLogField(r.Context(), "interaction_id", in.ID)
	writeJSON(w, http.StatusAccepted, AcceptedResponse{InteractionID: in.ID, Status: in.Status})
}
