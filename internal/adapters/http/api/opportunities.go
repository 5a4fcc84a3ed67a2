package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/domain/model"
	"github.com/okian/flok/internal/domain/ranking"
)

// OpportunityDependencies defines the interface for pulse reads, score
// breakdowns and bookings.
type OpportunityDependencies interface {
	Pulse(ctx context.Context, opportunityID string) (float64, error)
	OpportunityDetail(ctx context.Context, id string, withHistory bool) (service.OpportunityView, error)
	Explain(ctx context.Context, opportunityID, userID string) (ranking.Explanation, error)
	RSVP(ctx context.Context, opportunityID, userID string) (bool, error)
	CancelRSVP(ctx context.Context, opportunityID, userID string) (bool, error)
}

type pulseResponse struct {
	OpportunityID string  `json:"opportunity_id"`
	Pulse         float64 `json:"pulse"`
}

type rsvpRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

type rsvpResponse struct {
	OpportunityID string `json:"opportunity_id"`
	UserID        string `json:"user_id"`
	// Changed is false when the request was already in effect.
	Changed bool `json:"changed"`
}

// OpportunityHandler handles pulse and RSVP requests.
type OpportunityHandler struct {
	deps OpportunityDependencies
}

// NewOpportunityHandler creates a new opportunity handler.
func NewOpportunityHandler(deps OpportunityDependencies) *OpportunityHandler {
	return &OpportunityHandler{deps: deps}
}

// HandleGetPulse handles GET /opportunities/{id}/pulse requests.
func (h *OpportunityHandler) HandleGetPulse(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_pulse"
	id := chi.URLParam(r, "id")
	p, err := h.deps.Pulse(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, pulseResponse{OpportunityID: id, Pulse: p})
}

// HandleGetOpportunity handles GET /opportunities/{id}?include_history= requests.
func (h *OpportunityHandler) HandleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_opportunity"
	var withHistory bool
	if raw := r.URL.Query().Get("include_history"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeFailure(w, WrapKind(op, ErrBadRequest, model.InvalidField("include_history", "must be a boolean")))
			return
		}
		withHistory = v
	}
	v, err := h.deps.OpportunityDetail(r.Context(), chi.URLParam(r, "id"), withHistory)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleGetExplain handles GET /opportunities/{id}/explain?user_id= requests.
func (h *OpportunityHandler) HandleGetExplain(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_explain"
	req := rsvpRequest{UserID: r.URL.Query().Get("user_id")}
	if err := validate.Struct(req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	e, err := h.deps.Explain(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandlePostRSVP handles POST /opportunities/{id}/rsvp requests.
func (h *OpportunityHandler) HandlePostRSVP(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rsvp"
	var req rsvpRequest
	if err := decode(op, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	booked, err := h.deps.RSVP(r.Context(), id, req.UserID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rsvpResponse{OpportunityID: id, UserID: req.UserID, Changed: booked})
}

// HandleDeleteRSVP handles DELETE /opportunities/{id}/rsvp?user_id= requests.
func (h *OpportunityHandler) HandleDeleteRSVP(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_rsvp"
	req := rsvpRequest{UserID: r.URL.Query().Get("user_id")}
	if err := validate.Struct(req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id := chi.URLParam(r, "id")
	released, err := h.deps.CancelRSVP(r.Context(), id, req.UserID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rsvpResponse{OpportunityID: id, UserID: req.UserID, Changed: released})
}
