package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/geo"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/service"
)

// DriverActionRequest is the body of POST /drivers/{id}/actions.
type DriverActionRequest struct {
	Action string `json:"action"`
}

// DeliveryActionRequest is the body of POST /deliveries/{id}/actions.
type DeliveryActionRequest struct {
	Action      string `json:"action"`
	NewDriverID string `json:"newDriverId,omitempty"`
}

// MapConfigResponse is what map clients need to render the fleet.
type MapConfigResponse struct {
	Center     geo.Result `json:"center"`
	StyleToken string     `json:"styleToken,omitempty"`
	StreamURL  string     `json:"streamUrl,omitempty"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports ready once the driver channel is open.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Connected() {
		writeError(w, r, http.StatusServiceUnavailable, "driver channel not connected")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Store().Snapshot()

	raw := r.URL.Query().Get("status")
	if raw == "" {
		writeJSON(w, r, http.StatusOK, nonNil(st.AllDrivers()))
		return
	}
	status, err := model.ParseDriverStatus(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(st.DriversByStatus(status)))
}

func (h *Handler) ListAvailableDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, nonNil(h.svc.Store().AvailableDrivers()))
}

func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := h.svc.Store().DriverByID(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "driver not found: "+id)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

func (h *Handler) ListDriverDeliveries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	st := h.svc.Store().Snapshot()
	if _, ok := st.DriverByID(id); !ok {
		writeError(w, r, http.StatusNotFound, "driver not found: "+id)
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(st.DriverDeliveries(id)))
}

func (h *Handler) PerformDriverAction(w http.ResponseWriter, r *http.Request) {
	var req DriverActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action, err := model.ParseDriverAction(req.Action)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.svc.PerformDriverAction(r.Context(), id, action); err != nil {
		writeServiceError(w, r, err)
		return
	}
	d, _ := h.svc.Store().DriverByID(id)
	writeJSON(w, r, http.StatusOK, d)
}

func (h *Handler) RequestDriverLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestDriverLocation(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Store().Snapshot()

	raw := r.URL.Query().Get("status")
	if raw == "" {
		writeJSON(w, r, http.StatusOK, nonNil(st.AllDeliveries()))
		return
	}
	status, err := model.ParseDeliveryStatus(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(st.DeliveriesByStatus(status)))
}

func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := h.svc.Store().Snapshot().DeliveryByID(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "delivery not found: "+id)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req service.NewDelivery
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.CreateDelivery(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/deliveries/"+d.ID)
	writeJSON(w, r, http.StatusCreated, d)
}

func (h *Handler) PerformDeliveryAction(w http.ResponseWriter, r *http.Request) {
	var req DeliveryActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action, err := model.ParseDeliveryAction(req.Action)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.svc.PerformDeliveryAction(r.Context(), id, action, req.NewDriverID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	d, _ := h.svc.Store().Snapshot().DeliveryByID(id)
	writeJSON(w, r, http.StatusOK, d)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.svc.Store().Overview())
}

func (h *Handler) MapConfig(w http.ResponseWriter, r *http.Request) {
	fallback := model.Coordinate{Latitude: h.mapOpts.DefaultLatitude, Longitude: h.mapOpts.DefaultLongitude}
	writeJSON(w, r, http.StatusOK, MapConfigResponse{
		Center:     geo.Resolve(r.Context(), h.locator, fallback, geo.DefaultTimeout),
		StyleToken: h.mapOpts.StyleToken,
		StreamURL:  h.streamURL,
	})
}
