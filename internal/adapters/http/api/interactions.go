package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/domain/model"
)

// InteractionDependencies defines the interface for interaction ingestion.
type InteractionDependencies interface {
	Enqueue(ctx context.Context, in model.Interaction) (service.Receipt, error)
}

// interactionRequest is the body of POST /interactions.
type interactionRequest struct {
	ID            string `json:"id" validate:"omitempty,max=128"`
	UserID        string `json:"user_id" validate:"max=128"`
	OpportunityID string `json:"opportunity_id" validate:"required,max=128"`
	Kind          string `json:"kind" validate:"required,oneof=shown clicked accepted declined"`
	// At is RFC3339; empty means now.
	At string `json:"at" validate:"omitempty"`
}

func (req interactionRequest) interaction() (model.Interaction, error) {
	in := model.Interaction{
		ID:            req.ID,
		UserID:        req.UserID,
		OpportunityID: req.OpportunityID,
		Kind:          model.Kind(req.Kind),
	}
	if req.At != "" {
		at, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			return in, model.InvalidField("at", fmt.Sprintf("%q is not RFC3339", req.At))
		}
		in.At = at
	}
	return in, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// InteractionsHandler handles interaction requests.
type InteractionsHandler struct {
	deps InteractionDependencies
}

// NewInteractionsHandler creates a new interactions handler.
func NewInteractionsHandler(deps InteractionDependencies) *InteractionsHandler {
	return &InteractionsHandler{deps: deps}
}

// HandlePostInteraction handles POST /interactions requests. Accepted
// interactions are applied asynchronously.
func (h *InteractionsHandler) HandlePostInteraction(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_interaction"
	var req interactionRequest
	if err := decode(op, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	in, err := req.interaction()
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	receipt, err := h.deps.Enqueue(r.Context(), in)
	switch {
	case err != nil:
		writeFailure(w, Wrap(op, err))
	case receipt.Duplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: receipt.ID, Duplicate: true})
	case !receipt.Queued:
		writeFailure(w, NewKind(op, ErrBackpressure))
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: receipt.ID})
	}
}
