package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/flok/internal/domain/model"
)

// DirectoryDependencies defines the interface for directory writes.
type DirectoryDependencies interface {
	PutUser(ctx context.Context, u model.User) error
	PutOpportunity(ctx context.Context, o model.Opportunity) error
}

// DirectoryHandler handles user and opportunity upserts.
type DirectoryHandler struct {
	deps DirectoryDependencies
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(deps DirectoryDependencies) *DirectoryHandler {
	return &DirectoryHandler{deps: deps}
}

// pathID reconciles the {id} path parameter with the id in the body.
func pathID(r *http.Request, bodyID string) (string, error) {
	id := chi.URLParam(r, "id")
	if bodyID != "" && bodyID != id {
		return "", model.InvalidField("id", fmt.Sprintf("body id %q does not match path id %q", bodyID, id))
	}
	return id, nil
}

// HandlePutUser handles PUT /users/{id} requests.
func (h *DirectoryHandler) HandlePutUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_user"
	var u model.User
	if err := decode(op, r, &u); err != nil {
		writeFailure(w, err)
		return
	}
	id, err := pathID(r, u.ID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	u.ID = id
	if err := h.deps.PutUser(r.Context(), u); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandlePutOpportunity handles PUT /opportunities/{id} requests.
func (h *DirectoryHandler) HandlePutOpportunity(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_opportunity"
	var o model.Opportunity
	if err := decode(op, r, &o); err != nil {
		writeFailure(w, err)
		return
	}
	id, err := pathID(r, o.ID)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	o.ID = id
	if err := h.deps.PutOpportunity(r.Context(), o); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, o)
}
