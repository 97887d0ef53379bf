package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

const checkTimeout = 3 * time.Second

// storageChecker is what the health endpoints need from the storage driver.
type storageChecker interface {
	Ping(ctx context.Context) error
	OutboxBacklog(ctx context.Context) (domain.OutboxBacklog, error)
}

// HealthHandler serves liveness, readiness and the detailed health report.
type HealthHandler struct {
	store   storageChecker
	version string
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store storageChecker, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version, now: time.Now}
}

// HealthResponse is the JSON body of every health endpoint.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// ComponentStatus reports one dependency. Pending and Failed are set for the
// outbox only.
type ComponentStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Pending *int   `json:"pending,omitempty"`
	Failed  *int   `json:"failed,omitempty"`
}

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusDown     = "down"
)

// Live always answers 200 while the process serves HTTP.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: statusOK, Timestamp: h.now()})
}

// Ready answers 200 when storage responds, 503 otherwise.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: statusDown, Timestamp: h.now()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: statusOK, Timestamp: h.now()})
}

// Health reports storage latency and the outbox backlog. Storage failure is
// fatal (503); parked outbox messages only degrade the report.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     statusOK,
		Version:    h.version,
		Components: make(map[string]ComponentStatus, 2),
	}

	start := time.Now()
	if err := h.store.Ping(ctx); err != nil {
		resp.Status = statusDown
		resp.Components["storage"] = ComponentStatus{Status: statusDown}
	} else {
		resp.Components["storage"] = ComponentStatus{Status: statusOK, Latency: time.Since(start).String()}
		resp.Components["outbox"] = h.outbox(ctx, &resp)
	}
	resp.Timestamp = h.now()

	code := http.StatusOK
	if resp.Status == statusDown {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) outbox(ctx context.Context, resp *HealthResponse) ComponentStatus {
	b, err := h.store.OutboxBacklog(ctx)
	if err != nil {
		resp.Status = statusDegraded
		return ComponentStatus{Status: statusDown}
	}
	c := ComponentStatus{Status: statusOK, Pending: &b.Pending, Failed: &b.Failed}
	if b.Failed > 0 {
		c.Status = statusDegraded
		resp.Status = statusDegraded
	}
	return c
}
