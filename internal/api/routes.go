// Package api is the HTTP presentation surface of the portal.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"stealthcompany.com/hrportal/internal/auth"
	"stealthcompany.com/hrportal/internal/dispatch"
	"stealthcompany.com/hrportal/internal/metrics"
	"stealthcompany.com/hrportal/internal/requests"
	"stealthcompany.com/hrportal/internal/socket"
	"stealthcompany.com/hrportal/internal/view"
)

// FeedQuerier runs one-shot feed queries.
type FeedQuerier interface {
	Query(ctx context.Context, q requests.Query) requests.Feed
}

// Commander executes status changes.
type Commander interface {
	Submit(ctx context.Context, cmd dispatch.Command) (dispatch.Result, error)
	Cancel(ctx context.Context, key requests.Key, current requests.Status, confirmed bool) (dispatch.Result, error)
}

// Deps wires the handlers. Hub may be nil to disable /ws.
type Deps struct {
	Feed            FeedQuerier
	Commands        Commander
	Views           *view.Registry
	Hub             *socket.Hub
	Location        *time.Location
	DefaultPageSize int
	Auth            auth.Config
}

type handlers struct {
	Deps
}

// SetupRoutes configures and returns the HTTP router
func SetupRoutes(deps Deps) *mux.Router {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	h := &handlers{Deps: deps}

	r := mux.NewRouter()
	r.Use(metrics.MetricsMiddleware)
	r.Use(auth.Middleware(deps.Auth))

	r.HandleFunc(auth.HealthPath, h.health).Methods(http.MethodGet)
	r.Handle(auth.MetricsPath, metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/requests", h.listRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/{kind}/{id:[0-9]+}/decision", h.decide).Methods(http.MethodPost)
	api.HandleFunc("/requests/{kind}/{id:[0-9]+}/cancel", h.cancel).Methods(http.MethodPost)

	api.HandleFunc("/views", h.createView).Methods(http.MethodPost)
	api.HandleFunc("/views/{view}", h.getView).Methods(http.MethodGet)
	api.HandleFunc("/views/{view}", h.closeView).Methods(http.MethodDelete)
	api.HandleFunc("/views/{view}/status", h.setViewStatus).Methods(http.MethodPut)
	api.HandleFunc("/views/{view}/page", h.setViewPage).Methods(http.MethodPut)
	api.HandleFunc("/views/{view}/range/text", h.setRangeText).Methods(http.MethodPut)
	api.HandleFunc("/views/{view}/range/calendar", h.selectCalendar).Methods(http.MethodPut)
	api.HandleFunc("/views/{view}/range/commit", h.commitRange).Methods(http.MethodPost)
	api.HandleFunc("/views/{view}/filters", h.clearFilters).Methods(http.MethodDelete)

	if deps.Hub != nil {
		r.Handle("/ws", &socket.Handler{Hub: deps.Hub, ViewExists: deps.Views.Exists}).Methods(http.MethodGet)
	}

	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
