package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/noah-isme/agency-case-api/pkg/jobs"
)

// Notification task types consumed by the messaging collaborator.
const (
	EventCaseStatusChanged = "case.status_changed"
	EventPayoutDecided     = "payout.decided"
)

// Event is a fire-and-forget signal emitted after a committed mutation.
type Event struct {
	Type       string    `json:"type"`
	EntityID   string    `json:"entity_id"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier emits events without blocking or failing the caller.
type Notifier interface {
	Emit(ctx context.Context, event Event)
}

// NotificationPublisher delivers an event to the external transport.
type NotificationPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type eventQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationService buffers events on an in-memory queue; workers hand
// them to the publisher.
type NotificationService struct {
	queue     eventQueue
	publisher NotificationPublisher
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService constructs the service. Attach a queue with
// UseQueue before emitting.
func NewNotificationService(publisher NotificationPublisher, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{publisher: publisher, metrics: metrics, logger: logger}
}

// UseQueue sets the queue events are buffered on.
func (s *NotificationService) UseQueue(queue eventQueue) {
	s.queue = queue
}

// Emit enqueues event. Failures are logged and counted only.
func (s *NotificationService) Emit(ctx context.Context, event Event) {
	if s == nil || s.queue == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: event.Type, Payload: event})
	if err != nil {
		s.metrics.RecordNotification(event.Type, "dropped")
		s.logger.Warn("notification dropped", zap.String("type", event.Type), zap.String("entity_id", event.EntityID), zap.Error(err))
		return
	}
	s.metrics.RecordNotification(event.Type, "queued")
}

// Handle is the queue worker entry point.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(Event)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.RecordNotification(event.Type, "failed")
		return err
	}
	s.metrics.RecordNotification(event.Type, "published")
	return nil
}

type asynqEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqPublisher publishes events as asynq tasks on a Redis-backed queue.
type AsynqPublisher struct {
	client     asynqEnqueuer
	queue      string
	maxRetries int
}

// NewAsynqPublisher wraps an asynq client.
func NewAsynqPublisher(client asynqEnqueuer, queue string, maxRetries int) *AsynqPublisher {
	if queue == "" {
		queue = "notifications"
	}
	return &AsynqPublisher{client: client, queue: queue, maxRetries: maxRetries}
}

// Publish enqueues the event as a task named after its type.
func (p *AsynqPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	task := asynq.NewTask(event.Type, payload)
	if _, err := p.client.EnqueueContext(ctx, task, asynq.Queue(p.queue), asynq.MaxRetry(p.maxRetries)); err != nil {
		return fmt.Errorf("enqueue %s: %w", event.Type, err)
	}
	return nil
}

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a publisher backed by logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Info("notification", zap.String("type", event.Type), zap.String("entity_id", event.EntityID),
		zap.String("from", event.From), zap.String("to", event.To))
	return nil
}
