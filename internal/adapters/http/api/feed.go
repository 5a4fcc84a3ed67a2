package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/domain/ranking"
)

// FeedDependencies defines the interface for ranked reads.
type FeedDependencies interface {
	Feed(ctx context.Context, userID string, limit int) ([]ranking.Item, error)
	RankForUser(ctx context.Context, userID string, candidateIDs []string) ([]ranking.Item, error)
	Trending(ctx context.Context, limit int) []service.TrendingItem
}

type rankRequest struct {
	Candidates []string `json:"candidates" validate:"max=1000,dive,required,max=128"`
}

type rankResponse struct {
	UserID string         `json:"user_id"`
	Items  []ranking.Item `json:"items"`
}

type trendingResponse struct {
	Items []service.TrendingItem `json:"items"`
}

// FeedHandler handles feed, rank and trending requests.
type FeedHandler struct {
	deps FeedDependencies
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(deps FeedDependencies) *FeedHandler {
	return &FeedHandler{deps: deps}
}

// HandleGetFeed handles GET /users/{id}/feed?limit= requests.
func (h *FeedHandler) HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_feed"
	limit, err := queryLimit(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	items, err := h.deps.Feed(r.Context(), id, limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{UserID: id, Items: items})
}

// HandlePostRank handles POST /users/{id}/rank requests. An empty
// candidate list ranks every opportunity.
func (h *FeedHandler) HandlePostRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rank"
	var req rankRequest
	if err := decode(op, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	items, err := h.deps.RankForUser(r.Context(), id, req.Candidates)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{UserID: id, Items: items})
}

// HandleGetTrending handles GET /trending?limit= requests.
func (h *FeedHandler) HandleGetTrending(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trending"
	limit, err := queryLimit(op, r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trendingResponse{Items: h.deps.Trending(r.Context(), limit)})
}
