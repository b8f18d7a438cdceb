package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/internal/transmitter"
)

func testOptions(endpoint string) domain.TrackingOptions {
	opts := domain.DefaultTrackingOptions()
	opts.Endpoint = endpoint
	opts.Headers = map[string]string{"Authorization": "Bearer secret"}
	opts.Metadata = map[string]string{"device": "A1"}
	return opts.Normalize()
}

func testPayload() domain.LocationPayload {
	return domain.LocationPayload{Latitude: -6.2088, Longitude: 106.8456, TimestampMillis: 1715003456000}
}

func TestSend_Success(t *testing.T) {
	var gotBody []byte
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tx := NewTransmitter(nil)
	defer tx.Shutdown(context.Background())

	if !tx.Send(context.Background(), testPayload(), testOptions(srv.URL)) {
		t.Fatal("expected send to succeed on 200")
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected auth header, got %q", gotAuth)
	}
	if gotType != contentType {
		t.Errorf("expected %q, got %q", contentType, gotType)
	}

	p, meta, err := transmitter.Decode(gotBody)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Latitude != -6.2088 {
		t.Errorf("expected -6.2088, got %f", p.Latitude)
	}
	if meta["device"] != "A1" {
		t.Errorf("expected metadata, got %v", meta)
	}
}

func TestSend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tx := NewTransmitter(nil)
	if tx.Send(context.Background(), testPayload(), testOptions(srv.URL)) {
		t.Fatal("expected send to fail on 500")
	}
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	tx := NewTransmitter(nil)
	if tx.Send(context.Background(), testPayload(), testOptions(url)) {
		t.Fatal("expected send to fail when the endpoint is down")
	}
}

func TestSend_InvalidURL(t *testing.T) {
	tx := NewTransmitter(nil)
	opts := testOptions("http://[::1")
	if tx.Send(context.Background(), testPayload(), opts) {
		t.Fatal("expected send to fail for a malformed url")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	tx := NewTransmitter(nil)
	if !tx.State().Connected() {
		t.Fatal("http transmitter is ready before Initialize")
	}

	tx.Shutdown(context.Background())
	tx.Shutdown(context.Background())
	if tx.State().Connected() {
		t.Error("expected disconnected after shutdown")
	}

	if err := tx.Initialize(context.Background(), testOptions("http://127.0.0.1:1")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !tx.State().Connected() {
		t.Error("expected connected after Initialize")
	}
}

func TestTerminate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"no content", http.StatusNoContent, false},
		{"not found", http.StatusNotFound, true},
		{"server error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				body = string(b)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewTerminationClient().Terminate(context.Background(), srv.URL+"/alerts/42/complete", nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Terminate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if body != "{}" {
				t.Errorf("expected empty object body, got %q", body)
			}
		})
	}
}
