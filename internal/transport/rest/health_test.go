package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/journal-backend/internal/domain"
)

type storageStub struct {
	pingErr    error
	backlog    domain.OutboxBacklog
	backlogErr error
}

func (s *storageStub) Ping(context.Context) error { return s.pingErr }

func (s *storageStub) OutboxBacklog(context.Context) (domain.OutboxBacklog, error) {
	return s.backlog, s.backlogErr
}

func callHealth(t *testing.T, h http.HandlerFunc, path string) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLive_IgnoresStorage(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(&storageStub{pingErr: errors.New("connection refused")}, "test")

	code, resp := callHealth(t, h.Live, "/live")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
	}{
		{name: "storage up", wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "storage down", pingErr: errors.New("connection refused"), wantCode: http.StatusServiceUnavailable, wantStatus: "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthHandler(&storageStub{pingErr: tt.pingErr}, "test")
			code, resp := callHealth(t, h.Ready, "/ready")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		stub        storageStub
		wantCode    int
		wantStatus  string
		wantStorage string
		wantOutbox  string
	}{
		{
			name:        "all ok",
			stub:        storageStub{backlog: domain.OutboxBacklog{Pending: 3}},
			wantCode:    http.StatusOK,
			wantStatus:  "ok",
			wantStorage: "ok",
			wantOutbox:  "ok",
		},
		{
			name:        "parked messages degrade",
			stub:        storageStub{backlog: domain.OutboxBacklog{Pending: 1, Failed: 2}},
			wantCode:    http.StatusOK,
			wantStatus:  "degraded",
			wantStorage: "ok",
			wantOutbox:  "degraded",
		},
		{
			name:        "backlog query fails",
			stub:        storageStub{backlogErr: errors.New("timeout")},
			wantCode:    http.StatusOK,
			wantStatus:  "degraded",
			wantStorage: "ok",
			wantOutbox:  "down",
		},
		{
			name:        "storage down",
			stub:        storageStub{pingErr: errors.New("connection refused")},
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  "down",
			wantStorage: "down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := tt.stub
			h := NewHealthHandler(&stub, "v1.2.0")
			code, resp := callHealth(t, h.Health, "/health")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "v1.2.0", resp.Version)
			assert.Equal(t, tt.wantStorage, resp.Components["storage"].Status)

			outbox, ok := resp.Components["outbox"]
			if tt.wantOutbox == "" {
				assert.False(t, ok, "outbox is not checked when storage is down")
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantOutbox, outbox.Status)
		})
	}
}

func TestHealth_ReportsBacklogAndLatency(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(&storageStub{backlog: domain.OutboxBacklog{Pending: 7, Failed: 0}}, "v1")
	_, resp := callHealth(t, h.Health, "/health")

	assert.NotEmpty(t, resp.Components["storage"].Latency)
	outbox := resp.Components["outbox"]
	require.NotNil(t, outbox.Pending)
	require.NotNil(t, outbox.Failed)
	assert.Equal(t, 7, *outbox.Pending)
	assert.Equal(t, 0, *outbox.Failed)
}
