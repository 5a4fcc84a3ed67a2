// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	eventqueue "github.com/okian/flok/internal/adapters/mq/queue"
	service "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	InteractionDependencies
	DirectoryDependencies
	OpportunityDependencies
	FeedDependencies
	RebalanceDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	interactionsHandler *InteractionsHandler
	directoryHandler    *DirectoryHandler
	opportunityHandler  *OpportunityHandler
	feedHandler         *FeedHandler
	rebalanceHandler    *RebalanceHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(deps),
		interactionsHandler: NewInteractionsHandler(deps),
		directoryHandler:    NewDirectoryHandler(deps),
		opportunityHandler:  NewOpportunityHandler(deps),
		feedHandler:         NewFeedHandler(deps),
		rebalanceHandler:    NewRebalanceHandler(deps),
	}
}

// Router returns a chi router with the global middleware and every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Post("/interactions", MetricsMiddleware(s.interactionsHandler.HandlePostInteraction, "interactions"))

	r.Route("/users/{id}", func(r chi.Router) {
		r.Put("/", MetricsMiddleware(s.directoryHandler.HandlePutUser, "put_user"))
		r.Get("/feed", MetricsMiddleware(s.feedHandler.HandleGetFeed, "feed"))
		r.Post("/rank", MetricsMiddleware(s.feedHandler.HandlePostRank, "rank"))
	})

	r.Route("/opportunities/{id}", func(r chi.Router) {
		r.Put("/", MetricsMiddleware(s.directoryHandler.HandlePutOpportunity, "put_opportunity"))
		r.Get("/", MetricsMiddleware(s.opportunityHandler.HandleGetOpportunity, "get_opportunity"))
		r.Get("/explain", MetricsMiddleware(s.opportunityHandler.HandleGetExplain, "explain"))
		r.Get("/pulse", MetricsMiddleware(s.opportunityHandler.HandleGetPulse, "pulse"))
		r.Post("/rsvp", MetricsMiddleware(s.opportunityHandler.HandlePostRSVP, "rsvp"))
		r.Delete("/rsvp", MetricsMiddleware(s.opportunityHandler.HandleDeleteRSVP, "rsvp"))
	})

	r.Get("/trending", MetricsMiddleware(s.feedHandler.HandleGetTrending, "trending"))
	r.Post("/rebalance", MetricsMiddleware(s.rebalanceHandler.HandlePostRebalance, "rebalance"))
}

// validate checks request bodies. Field names follow the json tags.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	var fe *model.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		resp.Field = ve[0].Field()
	}
	writeJSON(w, status, resp)
}

// writeFailure maps domain and service errors to a status.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, eventqueue.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decode reads a JSON body and validates it.
func decode(op string, r *http.Request, v any) error {
	// An empty body decodes to the zero request.
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// queryLimit parses ?limit=; absent means zero, which the service treats
// as its default.
func queryLimit(op string, r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw))
	}
	return n, nil
}
