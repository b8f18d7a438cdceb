package websocket

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/internal/transmitter"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func testOptions(endpoint string) domain.TrackingOptions {
	opts := domain.DefaultTrackingOptions()
	opts.Endpoint = endpoint
	opts.Headers = map[string]string{"X-Device": "A1"}
	return opts.Normalize()
}

func waitConnected(t *testing.T, state *transmitter.ConnState, want bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		changed := state.Changed()
		if state.Connected() == want {
			return
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for connected=%v", want)
		}
	}
}

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 0},
		{4, 0},
		{5, 10 * time.Second},
		{14, 10 * time.Second},
		{15, 15 * time.Second},
		{100, 15 * time.Second},
	}

	for _, tt := range tests {
		if got := ReconnectDelay(tt.retry); got != tt.want {
			t.Errorf("ReconnectDelay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestShutdown_WithoutInitialize(t *testing.T) {
	tx := NewTransmitter(nil)
	tx.Shutdown(context.Background())
	tx.Shutdown(context.Background())

	if tx.State().Connected() {
		t.Error("expected disconnected after shutdown")
	}
}

func TestSend_NotConnected(t *testing.T) {
	tx := NewTransmitter(nil)
	if tx.Send(context.Background(), domain.LocationPayload{}, testOptions("ws://127.0.0.1:1")) {
		t.Error("expected send to be rejected while disconnected")
	}
}

func TestConnectAndSend(t *testing.T) {
	received := make(chan []byte, 1)
	var gotHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader.Store(r.Header.Get("X-Device"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	tx := NewTransmitter(nil)
	opts := testOptions(wsURL(srv.URL))
	if err := tx.Initialize(context.Background(), opts); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer tx.Shutdown(context.Background())

	waitConnected(t, tx.State(), true)
	if gotHeader.Load() != "A1" {
		t.Errorf("expected handshake header, got %v", gotHeader.Load())
	}

	payload := domain.LocationPayload{Latitude: 1.5, Longitude: 2.5, TimestampMillis: 42}
	if !tx.Send(context.Background(), payload, opts) {
		t.Fatal("expected send to be accepted")
	}

	select {
	case msg := <-received:
		p, _, err := transmitter.Decode(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.Latitude != 1.5 || p.TimestampMillis != 42 {
			t.Errorf("unexpected payload %+v", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestReconnect_AfterServerClose(t *testing.T) {
	var accepted atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if accepted.Add(1) == 1 {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
			_ = conn.Close()
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	tx := NewTransmitter(nil)
	if err := tx.Initialize(context.Background(), testOptions(wsURL(srv.URL))); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer tx.Shutdown(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for accepted.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected a reconnect, got %d connections", accepted.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitConnected(t, tx.State(), true)
}

func TestShutdown_StopsConnection(t *testing.T) {
	closed := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					closed <- ce.Code
				}
				return
			}
		}
	}))
	defer srv.Close()

	tx := NewTransmitter(nil)
	if err := tx.Initialize(context.Background(), testOptions(wsURL(srv.URL))); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	waitConnected(t, tx.State(), true)

	tx.Shutdown(context.Background())
	tx.Shutdown(context.Background())

	if tx.State().Connected() {
		t.Error("expected disconnected after shutdown")
	}
	select {
	case code := <-closed:
		if code != websocket.CloseNormalClosure {
			t.Errorf("expected close code %d, got %d", websocket.CloseNormalClosure, code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never saw a close frame")
	}
}

func TestInitialize_UnreachableStaysDisconnected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := wsURL(srv.URL)
	srv.Close()

	tx := NewTransmitter(nil)
	if err := tx.Initialize(context.Background(), testOptions(endpoint)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	tx.Shutdown(context.Background())

	if tx.State().Connected() {
		t.Error("expected disconnected")
	}
}

func TestShutdown_DuringStalledHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	defer func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	tx := NewTransmitter(nil)
	if err := tx.Initialize(context.Background(), testOptions("ws://"+ln.Addr().String())); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	tx.Shutdown(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Shutdown blocked on the handshake for %v", elapsed)
	}
	if tx.State().Connected() {
		t.Error("expected disconnected after shutdown")
	}

	tx.mu.Lock()
	retries := tx.retryCount
	tx.mu.Unlock()
	if retries != 0 {
		t.Errorf("expected no reconnect attempts after shutdown, got %d", retries)
	}
}
