package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/internal/transmitter"
)

var _ transmitter.Transmitter = (*Transmitter)(nil)

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	writeWait        = 20 * time.Second
	closeWait        = time.Second
	sendBuffer       = 16
)

type phase int32

const (
	phaseDisconnected phase = iota
	phaseConnecting
	phaseConnected
)

func (p phase) String() string {
	switch p {
	case phaseConnecting:
		return "connecting"
	case phaseConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// link is one live socket with its writer goroutine.
type link struct {
	conn     *websocket.Conn
	out      chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func (l *link) stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		_ = l.conn.Close()
	})
}

// Transmitter keeps one persistent socket open and reconnects with
// ReconnectDelay after failures. Connect, reconnect and shutdown run under mu.
type Transmitter struct {
	dialer *websocket.Dialer
	state  *transmitter.ConnState
	log    logrus.FieldLogger

	mu         sync.Mutex
	opts       domain.TrackingOptions
	configured bool
	disposing  bool
	phase      phase
	retryCount int
	link       *link
	timer      *time.Timer
	generation uint64

	current atomic.Pointer[link]

	cancelMu   sync.Mutex
	cancelDial context.CancelFunc
}

func NewTransmitter(log logrus.FieldLogger) *Transmitter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transmitter{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		state: transmitter.NewConnState(false),
		log:   log.WithField("transmitter", "websocket"),
	}
}

func (t *Transmitter) State() *transmitter.ConnState {
	return t.state
}

// Initialize stores the options and starts connecting in the background.
func (t *Transmitter) Initialize(_ context.Context, opts domain.TrackingOptions) error {
	dialCtx, cancel := context.WithCancel(context.Background())
	t.cancelMu.Lock()
	if t.cancelDial != nil {
		t.cancelDial()
	}
	t.cancelDial = cancel
	t.cancelMu.Unlock()

	t.mu.Lock()
	t.opts = opts
	t.configured = true
	t.disposing = false
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	t.log.WithField("endpoint", opts.Endpoint).Info("initializing websocket transmitter")
	go t.connect(dialCtx, gen)
	return nil
}

// connect dials without holding mu so Shutdown never waits on a stalled
// handshake. A result that arrives after Shutdown or a newer attempt is dropped.
func (t *Transmitter) connect(ctx context.Context, gen uint64) {
	t.mu.Lock()
	if !t.currentLocked(ctx, gen) || !t.configured {
		t.mu.Unlock()
		return
	}

	t.closeLinkLocked(websocket.CloseNormalClosure, "reconnecting")
	t.phase = phaseConnecting
	endpoint := t.opts.Endpoint
	header := http.Header{}
	for key, value := range t.opts.Headers {
		header.Set(key, value)
	}
	t.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	conn, _, err := t.dialer.DialContext(dialCtx, endpoint, header)
	cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.currentLocked(ctx, gen) {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		t.log.WithError(err).WithField("attempt", t.retryCount+1).Warn("websocket connect failed")
		t.phase = phaseDisconnected
		t.state.Set(false)
		t.scheduleReconnectLocked(ctx)
		return
	}

	l := &link{conn: conn, out: make(chan []byte, sendBuffer), done: make(chan struct{})}
	t.link = l
	t.current.Store(l)
	t.phase = phaseConnected
	t.retryCount = 0
	t.state.Set(true)
	t.log.Info("websocket connected")

	go t.readLoop(ctx, l)
	go t.writeLoop(l)
}

// currentLocked reports whether attempt gen may still act. Caller holds mu.
func (t *Transmitter) currentLocked(ctx context.Context, gen uint64) bool {
	return !t.disposing && gen == t.generation && ctx.Err() == nil
}

// scheduleReconnectLocked arms a single reconnect timer. Caller holds mu.
func (t *Transmitter) scheduleReconnectLocked(ctx context.Context) {
	if t.state.Connected() || t.disposing || ctx.Err() != nil {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	gen := t.generation
	delay := ReconnectDelay(t.retryCount)
	t.retryCount++

	t.log.WithFields(logrus.Fields{
		"delay_ms": delay.Milliseconds(),
		"attempt":  t.retryCount,
	}).Info("scheduling websocket reconnect")
	t.timer = time.AfterFunc(delay, func() { t.connect(ctx, gen) })
}

func (t *Transmitter) readLoop(ctx context.Context, l *link) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithField("panic", r).Error("websocket reader panicked")
			t.onClosed(ctx, l)
		}
	}()

	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.WithError(err).Info("websocket closed")
			} else {
				t.log.WithError(err).Warn("websocket read failed")
			}
			t.onClosed(ctx, l)
			return
		}
	}
}

func (t *Transmitter) writeLoop(l *link) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-l.out:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				t.log.WithError(err).Warn("websocket write failed")
				_ = l.conn.Close()
				return
			}
		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				t.log.WithError(err).Warn("websocket ping failed")
				_ = l.conn.Close()
				return
			}
		case <-l.done:
			return
		}
	}
}

// onClosed handles a failure or remote close. Events from a replaced link are ignored.
func (t *Transmitter) onClosed(ctx context.Context, l *link) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.stop()
	if t.link != l {
		return
	}
	t.link = nil
	t.current.Store(nil)
	t.phase = phaseDisconnected
	t.state.Set(false)
	if !t.disposing {
		t.scheduleReconnectLocked(ctx)
	}
}

func (t *Transmitter) closeLinkLocked(code int, reason string) {
	l := t.link
	if l == nil {
		return
	}
	t.link = nil
	t.current.Store(nil)
	_ = l.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeWait))
	l.stop()
}

// Send hands the frame to the writer without blocking.
func (t *Transmitter) Send(_ context.Context, payload domain.LocationPayload, opts domain.TrackingOptions) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithField("panic", r).Error("websocket send panicked")
			ok = false
		}
	}()

	if !t.state.Connected() {
		return false
	}
	l := t.current.Load()
	if l == nil {
		return false
	}

	body, err := transmitter.Encode(payload, opts.Metadata)
	if err != nil {
		t.log.WithError(err).Error("encode payload")
		return false
	}

	select {
	case l.out <- body:
		return true
	case <-l.done:
		return false
	default:
		t.log.Warn("websocket send buffer full")
		return false
	}
}

// Shutdown stops reconnecting and closes the socket with a normal closure.
func (t *Transmitter) Shutdown(_ context.Context) {
	t.cancelMu.Lock()
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
	t.cancelMu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.disposing = true
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	prev := t.phase
	t.closeLinkLocked(websocket.CloseNormalClosure, "service stopped")
	t.phase = phaseDisconnected
	t.state.Set(false)
	t.log.WithField("phase", prev.String()).Info("websocket transmitter shut down")
}
