package subscriber

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeMQTTMessage struct {
	payload []byte
}

func (f *fakeMQTTMessage) Duplicate() bool   { return false }
func (f *fakeMQTTMessage) Qos() byte         { return 0 }
func (f *fakeMQTTMessage) Retained() bool    { return false }
func (f *fakeMQTTMessage) Topic() string     { return "/tracker/device/A1/location" }
func (f *fakeMQTTMessage) MessageID() uint16 { return 0 }
func (f *fakeMQTTMessage) Payload() []byte   { return f.payload }
func (f *fakeMQTTMessage) Ack()              {}

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeMQTTClient records subscriptions; unimplemented methods panic via the nil embed.
type fakeMQTTClient struct {
	mqtt.Client

	mu           sync.Mutex
	subscribeErr error
	subscribed   map[string]byte
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
}

func newFakeMQTTClient() *fakeMQTTClient {
	return &fakeMQTTClient{
		subscribed: map[string]byte{},
		handlers:   map[string]mqtt.MessageHandler{},
	}
}

func (c *fakeMQTTClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return &fakeToken{err: c.subscribeErr}
	}
	c.subscribed[topic] = qos
	c.handlers[topic] = callback
	return &fakeToken{}
}

func (c *fakeMQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subscribed, t)
		delete(c.handlers, t)
	}
	c.unsubscribed = append(c.unsubscribed, topics...)
	return &fakeToken{}
}

func (c *fakeMQTTClient) publish(topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	if h != nil {
		h(c, &fakeMQTTMessage{payload: payload})
	}
}
