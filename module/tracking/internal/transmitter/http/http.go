package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/internal/transmitter"
)

var _ transmitter.Transmitter = (*Transmitter)(nil)

const (
	connectTimeout = 15 * time.Second
	readTimeout    = 20 * time.Second
	writeTimeout   = 20 * time.Second
	contentType    = "application/json; charset=utf-8"
)

// Transmitter posts each payload as a single HTTP request. It is stateless,
// so it reports connected from construction until Shutdown.
type Transmitter struct {
	client *http.Client
	state  *transmitter.ConnState
	log    logrus.FieldLogger
}

func NewTransmitter(log logrus.FieldLogger) *Transmitter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transmitter{
		client: newClient(),
		state:  transmitter.NewConnState(true),
		log:    log.WithField("transmitter", "http"),
	}
}

func newClient() *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: readTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   4,
		},
		Timeout: connectTimeout + writeTimeout + readTimeout,
	}
}

func (t *Transmitter) Initialize(_ context.Context, _ domain.TrackingOptions) error {
	t.state.Set(true)
	return nil
}

func (t *Transmitter) State() *transmitter.ConnState {
	return t.state
}

func (t *Transmitter) Send(ctx context.Context, payload domain.LocationPayload, opts domain.TrackingOptions) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithField("panic", r).Error("http send panicked")
			ok = false
		}
	}()

	body, err := transmitter.Encode(payload, opts.Metadata)
	if err != nil {
		t.log.WithError(err).Error("encode payload")
		return false
	}

	status, err := postJSON(ctx, t.client, opts.Endpoint, body, opts.Headers)
	if err != nil {
		t.log.WithError(err).Warn("http send failed")
		return false
	}
	t.log.WithField("status", status).Debug("http response")
	return status >= 200 && status < 300
}

func (t *Transmitter) Shutdown(_ context.Context) {
	t.client.CloseIdleConnections()
	t.state.Set(false)
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
