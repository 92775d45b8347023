// Package api exposes the tracker over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/geo"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/service"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

// Handler serves the tracker API.
type Handler struct {
	svc       *service.DeliveryService
	locator   geo.Provider
	mapOpts   *options.MapOptions
	streamURL string
}

// NewHandler creates a Handler. locator may be nil, in which case the map
// center is always the configured default.
func NewHandler(svc *service.DeliveryService, locator geo.Provider, mapOpts *options.MapOptions, streamURL string) *Handler {
	return &Handler{svc: svc, locator: locator, mapOpts: mapOpts, streamURL: streamURL}
}

// NewRouter registers the API, health and metrics routes.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/drivers", h.ListDrivers).Methods(http.MethodGet)
	v1.HandleFunc("/drivers/available", h.ListAvailableDrivers).Methods(http.MethodGet)
	v1.HandleFunc("/drivers/{id}", h.GetDriver).Methods(http.MethodGet)
	v1.HandleFunc("/drivers/{id}/deliveries", h.ListDriverDeliveries).Methods(http.MethodGet)
	v1.HandleFunc("/drivers/{id}/actions", h.PerformDriverAction).Methods(http.MethodPost)
	v1.HandleFunc("/drivers/{id}/location-requests", h.RequestDriverLocation).Methods(http.MethodPost)

	v1.HandleFunc("/deliveries", h.ListDeliveries).Methods(http.MethodGet)
	v1.HandleFunc("/deliveries", h.CreateDelivery).Methods(http.MethodPost)
	v1.HandleFunc("/deliveries/{id}", h.GetDelivery).Methods(http.MethodGet)
	v1.HandleFunc("/deliveries/{id}/actions", h.PerformDeliveryAction).Methods(http.MethodPost)

	v1.HandleFunc("/overview", h.Overview).Methods(http.MethodGet)
	v1.HandleFunc("/config/map", h.MapConfig).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
