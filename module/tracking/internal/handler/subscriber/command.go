package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

const (
	DefaultCommandTopic = "/tracker/device/command"
	commandBuffer       = 16
)

type commandDispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
}

type commandMessage struct {
	Action  string          `json:"action"`
	Options json.RawMessage `json:"options"`
	AlertID string          `json:"alertId"`
}

// CommandSubscriber consumes control commands and applies them in arrival
// order on its own goroutine, outside the MQTT callback.
type CommandSubscriber struct {
	client     mqtt.Client
	topic      string
	dispatcher commandDispatcher
	log        logrus.FieldLogger

	commands chan domain.Command
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewCommandSubscriber(client mqtt.Client, topic string, dispatcher commandDispatcher, log logrus.FieldLogger) *CommandSubscriber {
	if topic == "" {
		topic = DefaultCommandTopic
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CommandSubscriber{
		client:     client,
		topic:      topic,
		dispatcher: dispatcher,
		log:        log.WithField("subscriber", "command"),
		commands:   make(chan domain.Command, commandBuffer),
		done:       make(chan struct{}),
	}
}

func (s *CommandSubscriber) Start() error {
	token := s.client.Subscribe(s.topic, 1, s.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop unsubscribes and waits for the command in progress to finish.
func (s *CommandSubscriber) Stop() {
	s.stopOnce.Do(func() {
		if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
			s.log.WithError(token.Error()).Warn("unsubscribe commands")
		}
		close(s.done)
		s.wg.Wait()
	})
}

func (s *CommandSubscriber) run() {
	defer s.wg.Done()
	for {
		select {
		case cmd := <-s.commands:
			s.dispatch(cmd)
		case <-s.done:
			return
		}
	}
}

func (s *CommandSubscriber) dispatch(cmd domain.Command) {
	log := s.log.WithField("action", cmd.Action)
	if err := s.dispatcher.Dispatch(context.Background(), cmd); err != nil {
		log.WithError(err).Warn("command failed")
		return
	}
	log.Info("command applied")
}

func (s *CommandSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	cmd, err := decodeCommand(msg.Payload())
	if err != nil {
		s.log.WithError(err).Warn("invalid command message")
		return
	}

	select {
	case s.commands <- cmd:
	default:
		s.log.WithField("action", cmd.Action).Warn("command buffer full, dropping")
	}
}

// decodeCommand applies defaults to any options not present in the message.
func decodeCommand(body []byte) (domain.Command, error) {
	var raw commandMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Command{}, err
	}

	cmd := domain.Command{
		Action:  domain.CommandAction(strings.ToUpper(strings.TrimSpace(raw.Action))),
		AlertID: raw.AlertID,
	}
	if cmd.Action == "" {
		return domain.Command{}, fmt.Errorf("action: required")
	}

	if len(raw.Options) > 0 && string(raw.Options) != "null" {
		opts := domain.DefaultTrackingOptions()
		if err := json.Unmarshal(raw.Options, &opts); err != nil {
			return domain.Command{}, fmt.Errorf("options: %w", err)
		}
		cmd.Options = &opts
	}
	return cmd, nil
}
