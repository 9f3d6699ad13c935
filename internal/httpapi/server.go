// Package httpapi implements the relay's plain-HTTP surface: health checks,
// device registration, and the Prometheus scrape endpoint. It runs alongside
// the WebSocket listener on a separate address.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcs-rmm/relay/internal/device"
	"github.com/arcs-rmm/relay/internal/session"
)

// Deps bundles the components the HTTP surface reads from.
type Deps struct {
	Devices  *device.Registry
	Sessions *session.Manager
}

// NewRouter builds the chi router for the relay's HTTP surface: GET /health,
// POST /api/devices/register (rate-limited per-IP via httprate), and
// GET /metrics.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/health", healthHandler(deps))
	r.Handle("/metrics", promhttp.Handler())

	registerLimit := httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	r.With(registerLimit).Post("/api/devices/register", registerHandler(deps))

	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Sessions  int    `json:"sessions"`
	Timestamp int64  `json:"timestamp"`
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "ok",
			Sessions:  deps.Sessions.Count(),
			Timestamp: time.Now().UTC().Unix(),
		})
	}
}

type registerRequest struct {
	DeviceID     string `json:"device_id"`
	DeviceSecret string `json:"device_secret"`
	DeviceModel  string `json:"device_model"`
}

type registerResponse struct {
	Success  bool   `json:"success"`
	DeviceID string `json:"deviceId"`
	Token    string `json:"token"`
}

func registerHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.DeviceID == "" || req.DeviceSecret == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "device_id and device_secret are required"})
			return
		}

		created, err := deps.Devices.Register(req.DeviceID, req.DeviceSecret, req.DeviceModel)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
			return
		}
		if !created {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "device_id already registered"})
			return
		}

		writeJSON(w, http.StatusOK, registerResponse{
			Success:  true,
			DeviceID: req.DeviceID,
			Token:    req.DeviceSecret,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
