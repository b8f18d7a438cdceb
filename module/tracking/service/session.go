package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/notifier"
	"github.com/racanix/location-foreground-service/module/tracking/internal/transmitter"
)

const defaultIdlePoll = 5000 * time.Millisecond

var ErrUnknownCommand = errors.New("unknown command")

// LocationSource delivers location samples while subscribed.
type LocationSource interface {
	Subscribe(req domain.LocationRequest, fn func(ctx context.Context, loc domain.Location)) error
	Unsubscribe() error
}

// Terminator completes an alert on the backend.
type Terminator interface {
	Terminate(ctx context.Context, url string, headers map[string]string) error
}

// TransmitterFactory builds a fresh transmitter for every session.
type TransmitterFactory func(t domain.Transport) (transmitter.Transmitter, error)

type session struct {
	id      string
	opts    domain.TrackingOptions
	ctx     context.Context
	cancel  context.CancelFunc
	tx      transmitter.Transmitter
	queue   *PayloadQueue
	monitor *ArrivalMonitor
	wake    chan struct{}
	log     logrus.FieldLogger

	mu       sync.Mutex
	closed   bool
	flushing atomic.Bool
	wg       sync.WaitGroup
}

// notify wakes an idle flush loop.
func (sess *session) notify() {
	select {
	case sess.wake <- struct{}{}:
	default:
	}
}

// TrackingService owns the active session: transmitter, queue, arrival
// monitor, location subscription and flush loop.
type TrackingService struct {
	source         LocationSource
	notifier       notifier.Notifier
	alerts         *AlertService
	terminator     Terminator
	newTransmitter TransmitterFactory
	log            logrus.FieldLogger

	now      func() time.Time
	idlePoll time.Duration

	lifecycle sync.Mutex
	current   atomic.Pointer[session]

	pendingMu sync.Mutex
	closing   bool
	pending   sync.WaitGroup
}

func NewTrackingService(
	source LocationSource,
	n notifier.Notifier,
	alerts *AlertService,
	terminator Terminator,
	factory TransmitterFactory,
	log logrus.FieldLogger,
) *TrackingService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TrackingService{
		source:         source,
		notifier:       n,
		alerts:         alerts,
		terminator:     terminator,
		newTransmitter: factory,
		log:            log.WithField("component", "tracking"),
		now:            time.Now,
		idlePoll:       defaultIdlePoll,
	}
}

// Start validates opts, tears down any running session and starts a new one.
// An invalid configuration leaves the current state untouched.
func (s *TrackingService) Start(ctx context.Context, opts domain.TrackingOptions) error {
	opts = opts.Normalize()
	if err := opts.Validate(); err != nil {
		return err
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if prev := s.current.Swap(nil); prev != nil {
		prev.log.Info("restarting tracking session")
		s.teardown(ctx, prev)
	}

	tx, err := s.newTransmitter(opts.Transport)
	if err != nil {
		return fmt.Errorf("create transmitter: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	sess := &session{
		id:      id,
		opts:    opts,
		ctx:     sessCtx,
		cancel:  cancel,
		tx:      tx,
		queue:   NewPayloadQueue(opts.QueueCapacity),
		monitor: NewArrivalMonitor(),
		wake:    make(chan struct{}, 1),
		log: s.log.WithFields(logrus.Fields{
			"session_id": id,
			"transport":  opts.Transport,
		}),
	}

	if err := tx.Initialize(sessCtx, opts); err != nil {
		cancel()
		tx.Shutdown(ctx)
		return fmt.Errorf("initialize transmitter: %w", err)
	}

	s.current.Store(sess)
	if err := s.source.Subscribe(opts.LocationRequest(), s.HandleLocation); err != nil {
		s.current.Store(nil)
		s.teardown(ctx, sess)
		return fmt.Errorf("subscribe locations: %w", err)
	}

	s.ensureFlushing(sess)
	s.publishStatus(ctx, sess)

	sess.log.WithFields(logrus.Fields{
		"endpoint":       opts.Endpoint,
		"queue_capacity": opts.QueueCapacity,
		"interval_ms":    opts.MinUpdateIntervalMillis,
	}).Info("tracking session started")
	return nil
}

// Stop ends the active session. It is a no-op when idle.
func (s *TrackingService) Stop(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	sess := s.current.Swap(nil)
	if sess == nil {
		return
	}
	s.teardown(ctx, sess)
	sess.log.Info("tracking session stopped")
}

// stopSession stops sess only if it is still the active session.
func (s *TrackingService) stopSession(ctx context.Context, sess *session) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.current.CompareAndSwap(sess, nil) {
		return
	}
	s.teardown(ctx, sess)
	sess.log.Info("tracking session stopped")
}

func (s *TrackingService) teardown(ctx context.Context, sess *session) {
	if err := s.source.Unsubscribe(); err != nil {
		sess.log.WithError(err).Warn("unsubscribe locations")
	}

	sess.mu.Lock()
	sess.closed = true
	sess.mu.Unlock()

	sess.cancel()
	sess.tx.Shutdown(ctx)
	sess.wg.Wait()
	sess.queue.Clear()
	sess.monitor.Reset()
}

// Shutdown stops the session and waits for background work (arrival
// confirmations, automatic stops). No new background work starts afterwards.
func (s *TrackingService) Shutdown(ctx context.Context) {
	s.pendingMu.Lock()
	s.closing = true
	s.pendingMu.Unlock()

	s.Stop(ctx)
	s.pending.Wait()
}

// goTracked runs fn on a goroutine that Shutdown waits for. It reports false
// once Shutdown has begun.
func (s *TrackingService) goTracked(fn func()) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if s.closing {
		return false
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn()
	}()
	return true
}

// HandleLocation is the location callback: arrival check, then enqueue.
func (s *TrackingService) HandleLocation(ctx context.Context, loc domain.Location) {
	sess := s.current.Load()
	if sess == nil {
		return
	}

	if sess.opts.StopWhenNoAlerts && s.alerts != nil {
		n, err := s.alerts.Count(ctx)
		if err != nil {
			sess.log.WithError(err).Warn("count alerts")
		} else if n == 0 {
			sess.log.Info("no alerts left, stopping session")
			s.goTracked(func() { s.stopSession(context.Background(), sess) })
			return
		}
	}

	s.checkArrival(ctx, sess, loc)

	if sess.queue.Enqueue(domain.NewLocationPayload(loc, s.now())) {
		sess.log.Debug("queue full, dropped oldest payload")
	}
	sess.notify()
	s.ensureFlushing(sess)
}

func (s *TrackingService) activeTarget(ctx context.Context, sess *session) (string, *domain.TargetLocation) {
	if s.alerts != nil {
		id, target, err := s.alerts.ActiveTarget(ctx)
		if err != nil {
			sess.log.WithError(err).Warn("load active target")
		} else if target != nil {
			return id, target
		}
	}
	return "", sess.opts.TargetLocation
}

func (s *TrackingService) checkArrival(ctx context.Context, sess *session, loc domain.Location) {
	alertID, target := s.activeTarget(ctx, sess)
	if target == nil {
		return
	}

	dist, fired := sess.monitor.Evaluate(loc, *target)
	if !fired {
		return
	}

	sess.log.WithFields(logrus.Fields{
		"alert_id": alertID,
		"distance": dist,
	}).Info("arrived at target")

	if s.notifier == nil {
		return
	}
	event := &domain.ArrivalEvent{
		AlertID:   alertID,
		Location:  loc,
		Distance:  dist,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.notifier.NotifyArrival(ctx, event); err != nil {
		sess.log.WithError(err).Warn("publish arrival")
	}
}

// ensureFlushing starts the flush loop unless it is already running.
func (s *TrackingService) ensureFlushing(sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed || !sess.flushing.CompareAndSwap(false, true) {
		return
	}
	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer sess.flushing.Store(false)
		s.flush(sess)
	}()
}

// flush delivers the queue head by head. A failed head is retried after
// RetryDelay and blocks everything behind it.
func (s *TrackingService) flush(sess *session) {
	if sess.tx == nil {
		return
	}
	state := sess.tx.State()

	for sess.ctx.Err() == nil {
		changed := state.Changed()
		if !state.Connected() {
			select {
			case <-changed:
			case <-sess.ctx.Done():
				return
			}
			continue
		}

		entry, ok := sess.queue.Peek()
		if !ok {
			if !s.wait(sess, s.idlePoll, changed) {
				return
			}
			continue
		}

		if sess.tx.Send(sess.ctx, entry.Payload, sess.opts) {
			sess.queue.Ack(entry.Seq)
			s.publishStatus(sess.ctx, sess)
			continue
		}

		sess.log.WithField("retry_ms", sess.opts.RetryDelayMillis).Debug("send failed, retrying head")
		if !s.wait(sess, sess.opts.RetryDelay(), nil) {
			return
		}
	}
}

// wait sleeps for d, returning early on enqueue or a connection change.
// It reports false once the session is cancelled.
func (s *TrackingService) wait(sess *session, d time.Duration, changed <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var wake <-chan struct{}
	if changed != nil {
		wake = sess.wake
	}

	select {
	case <-timer.C:
	case <-wake:
	case <-changed:
	case <-sess.ctx.Done():
		return false
	}
	return true
}

func (s *TrackingService) publishStatus(ctx context.Context, sess *session) {
	if s.notifier == nil {
		return
	}
	event := &domain.StatusEvent{
		SessionID: sess.id,
		Title:     sess.opts.NotificationTitle,
		Body:      sess.opts.NotificationBody,
		Pending:   sess.queue.Len(),
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.notifier.UpdateStatus(ctx, event); err != nil {
		sess.log.WithError(err).Debug("publish status")
	}
}

// ConfirmArrival dismisses the arrival notification and, when a termination
// endpoint is configured, completes the alert in the background. The alert is
// removed whatever the outcome of the call.
func (s *TrackingService) ConfirmArrival(ctx context.Context, alertID string) {
	s.dismiss(ctx)

	sess := s.current.Load()
	if sess == nil || alertID == "" || sess.opts.AlertTerminationEndpoint == "" {
		return
	}

	target := sess.opts.TerminationURL(alertID)
	headers := sess.opts.Headers
	log := sess.log.WithFields(logrus.Fields{"alert_id": alertID, "url": target})

	started := s.goTracked(func() {
		bg := context.Background()

		if s.terminator != nil {
			if err := s.terminator.Terminate(bg, target, headers); err != nil {
				log.WithError(err).Warn("terminate alert")
			} else {
				log.Info("alert terminated")
			}
		}

		if s.alerts == nil {
			return
		}
		if _, err := s.alerts.Remove(bg, alertID); err != nil {
			log.WithError(err).Warn("remove alert")
		}
	})
	if !started {
		log.Warn("service shutting down, alert not terminated")
	}
}

func (s *TrackingService) RejectArrival(ctx context.Context) {
	s.dismiss(ctx)
}

func (s *TrackingService) dismiss(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.DismissArrival(ctx); err != nil {
		s.log.WithError(err).Warn("dismiss arrival")
	}
}

// Dispatch routes one inbound command.
func (s *TrackingService) Dispatch(ctx context.Context, cmd domain.Command) error {
	switch cmd.Action {
	case domain.ActionStart:
		opts := domain.DefaultTrackingOptions()
		if cmd.Options != nil {
			opts = *cmd.Options
		}
		return s.Start(ctx, opts)
	case domain.ActionStop:
		s.Stop(ctx)
		return nil
	case domain.ActionConfirmArrival:
		s.ConfirmArrival(ctx, cmd.AlertID)
		return nil
	case domain.ActionRejectArrival:
		s.RejectArrival(ctx)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
}

func (s *TrackingService) Running() bool {
	return s.current.Load() != nil
}

func (s *TrackingService) Status() domain.Status {
	sess := s.current.Load()
	if sess == nil {
		return domain.Status{}
	}
	return domain.Status{
		Running:   true,
		Connected: sess.tx.State().Connected(),
		Pending:   sess.queue.Len(),
		SessionID: sess.id,
	}
}
