package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/pkg/jobs"
	"github.com/noah-isme/sma-enrollment-api/pkg/middleware/requestid"
)

// eventNotifier is what the engine needs to announce transitions.
type eventNotifier interface {
	Notify(ctx context.Context, event models.Event)
}

// EventSink delivers an event somewhere.
type EventSink interface {
	Name() string
	Deliver(ctx context.Context, event models.Event) error
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Name implements EventSink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements EventSink.
func (s *LogSink) Deliver(ctx context.Context, event models.Event) error {
	s.logger.Info("event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("entity_id", event.EntityID),
		zap.String("student_id", event.StudentID),
		zap.String("status", event.Status),
		zap.String("reason", event.Reason),
		zap.String("recipient", event.Recipient),
		zap.String("request_id", event.RequestID))
	return nil
}

type eventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PubSubSink publishes events as JSON on a redis channel.
type PubSubSink struct {
	publisher eventPublisher
	channel   string
}

// NewPubSubSink constructs a pub/sub sink.
func NewPubSubSink(publisher eventPublisher, channel string) *PubSubSink {
	if channel == "" {
		channel = "enrollment.events"
	}
	return &PubSubSink{publisher: publisher, channel: channel}
}

// Name implements EventSink.
func (s *PubSubSink) Name() string { return "pubsub" }

// Deliver implements EventSink.
func (s *PubSubSink) Deliver(ctx context.Context, event models.Event) error {
	if s.publisher == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	return s.publisher.Publish(ctx, s.channel, payload)
}

// NotificationConfig tunes the delivery worker pool.
type NotificationConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// delivery tracks the sinks an event still has to reach across retries.
type delivery struct {
	event   models.Event
	pending []EventSink
}

// NotificationService fans engine events out to sinks on a background queue.
type NotificationService struct {
	queue   *jobs.Queue
	sinks   []EventSink
	enabled bool
	logger  *zap.Logger
	metrics *MetricsService
}

// NewNotificationService constructs the service; call Start before Notify.
func NewNotificationService(cfg NotificationConfig, logger *zap.Logger, metrics *MetricsService, sinks ...EventSink) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{sinks: sinks, enabled: cfg.Enabled, logger: logger, metrics: metrics}
	svc.queue = jobs.NewQueue("notifications", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Stats reports delivery counters.
func (s *NotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// Notify stamps and enqueues an event. Delivery failures never reach the caller.
func (s *NotificationService) Notify(ctx context.Context, event models.Event) {
	if s == nil || !s.enabled {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestid.FromContext(ctx)
	}
	job := jobs.Job{ID: event.ID, Type: string(event.Type), Payload: &delivery{event: event, pending: s.sinks}}
	if _, err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("notification enqueue failed, delivering inline", zap.String("event_id", event.ID), zap.Error(err))
		_ = s.handle(ctx, job)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	d, ok := job.Payload.(*delivery)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	var failed []EventSink
	var errs []error
	for _, sink := range d.pending {
		if err := sink.Deliver(ctx, d.event); err != nil {
			s.metrics.RecordNotificationFailure()
			s.logger.Warn("event delivery failed", zap.String("sink", sink.Name()), zap.String("event_id", d.event.ID), zap.Error(err))
			failed = append(failed, sink)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	d.pending = failed
	return errors.Join(errs...)
}
