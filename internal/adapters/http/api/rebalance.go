package api

import (
	"context"
	"net/http"

	service "github.com/okian/flok/internal/app"
)

// RebalanceDependencies defines the interface for batch allocation.
type RebalanceDependencies interface {
	Rebalance(ctx context.Context, req service.RebalanceRequest) (service.RebalanceResult, error)
}

type rebalanceRequest struct {
	UserIDs        []string `json:"user_ids" validate:"dive,required,max=128"`
	OpportunityIDs []string `json:"opportunity_ids" validate:"dive,required,max=128"`
	Fairness       bool     `json:"fairness"`
	Commit         bool     `json:"commit"`
	TopK           int      `json:"top_k" validate:"min=0,max=20"`
}

// RebalanceHandler handles rebalance requests.
type RebalanceHandler struct {
	deps RebalanceDependencies
}

// NewRebalanceHandler creates a new rebalance handler.
func NewRebalanceHandler(deps RebalanceDependencies) *RebalanceHandler {
	return &RebalanceHandler{deps: deps}
}

// HandlePostRebalance handles POST /rebalance requests.
func (h *RebalanceHandler) HandlePostRebalance(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rebalance"
	var req rebalanceRequest
	if err := decode(op, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.deps.Rebalance(r.Context(), service.RebalanceRequest{
		UserIDs:        req.UserIDs,
		OpportunityIDs: req.OpportunityIDs,
		Fairness:       req.Fairness,
		Commit:         req.Commit,
		TopK:           req.TopK,
	})
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
