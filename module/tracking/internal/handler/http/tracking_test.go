package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

type mockTrackingService struct {
	startFn   func(ctx context.Context, opts domain.TrackingOptions) error
	status    domain.Status
	stopped   bool
	confirmed []string
	rejected  int
}

func (m *mockTrackingService) Start(ctx context.Context, opts domain.TrackingOptions) error {
	return m.startFn(ctx, opts)
}

func (m *mockTrackingService) Stop(_ context.Context) {
	m.stopped = true
}

func (m *mockTrackingService) Status() domain.Status {
	return m.status
}

func (m *mockTrackingService) ConfirmArrival(_ context.Context, alertID string) {
	m.confirmed = append(m.confirmed, alertID)
}

func (m *mockTrackingService) RejectArrival(_ context.Context) {
	m.rejected++
}

func setupTrackingRouter(svc trackingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTrackingHandler(svc)
	h.Register(r.Group(""))
	return r
}

func TestStart_Success(t *testing.T) {
	var got domain.TrackingOptions
	svc := &mockTrackingService{
		startFn: func(_ context.Context, opts domain.TrackingOptions) error {
			got = opts
			return nil
		},
		status: domain.Status{Running: true, SessionID: "s1"},
	}

	r := setupTrackingRouter(svc)
	body := `{"endpoint":"https://example.com/track","headers":{"Authorization":"Bearer x"},"queueCapacity":8}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tracking/start", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got.Endpoint != "https://example.com/track" || got.QueueCapacity != 8 {
		t.Errorf("unexpected options %+v", got)
	}
	if got.RetryDelayMillis != domain.DefaultRetryDelay {
		t.Errorf("expected default retry delay, got %d", got.RetryDelayMillis)
	}
	if got.Headers["Authorization"] != "Bearer x" {
		t.Errorf("expected header to be bound, got %v", got.Headers)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["running"] != true || resp["session_id"] != "s1" {
		t.Errorf("unexpected response %v", resp)
	}
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		startErr error
		wantCode int
	}{
		{"malformed body", `{"endpoint":`, nil, http.StatusBadRequest},
		{"blank endpoint", `{"endpoint":""}`, domain.ErrEndpointRequired, http.StatusBadRequest},
		{"transmitter failure", `{"endpoint":"wss://x"}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTrackingService{
				startFn: func(_ context.Context, _ domain.TrackingOptions) error { return tt.startErr },
			}
			r := setupTrackingRouter(svc)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/tracking/start", bytes.NewBufferString(tt.body))
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestStop(t *testing.T) {
	svc := &mockTrackingService{}
	r := setupTrackingRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tracking/stop", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !svc.stopped {
		t.Error("expected Stop to be called")
	}
}

func TestGetStatus(t *testing.T) {
	svc := &mockTrackingService{status: domain.Status{Running: true, Connected: true, Pending: 4, SessionID: "s1"}}
	r := setupTrackingRouter(svc)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/tracking", nil)
	r.ServeHTTP(w, req)

	var resp domain.Status
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp != svc.status {
		t.Errorf("expected %+v, got %+v", svc.status, resp)
	}
}

func TestArrivalActions(t *testing.T) {
	svc := &mockTrackingService{}
	r := setupTrackingRouter(svc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/tracking/arrival/confirm", bytes.NewBufferString(`{"alertId":"a1"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(svc.confirmed) != 1 || svc.confirmed[0] != "a1" {
		t.Errorf("unexpected confirmations %v", svc.confirmed)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/tracking/arrival/confirm", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 without body, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/tracking/arrival/reject", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted || svc.rejected != 1 {
		t.Errorf("expected reject to be accepted, got %d / %d", w.Code, svc.rejected)
	}
}
