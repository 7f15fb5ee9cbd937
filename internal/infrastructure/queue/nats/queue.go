package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const (
	KindQuery    = "query"
	KindFeedback = "feedback"

	workerQueue = "interaction-workers"
)

// Event is the wire envelope for one interaction record.
type Event struct {
	Kind      string                 `json:"kind"`
	Published time.Time              `json:"published_at"`
	Query     *domain.QueryLogRecord `json:"query,omitempty"`
	Feedback  *domain.FeedbackRecord `json:"feedback,omitempty"`
}

// Queue publishes interaction events to "{prefix}.query" and
// "{prefix}.feedback" and lets workers consume them. It satisfies
// ports.InteractionLog on the publishing side.
type Queue struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, prefix string) (*Queue, error) {
	return NewWithOptions(url, prefix, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, prefix string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "advisor.interactions"
	}

	conn, err := nats.Connect(
		url,
		nats.Name("student-tax-advisor"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		prefix:   prefix,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) Subject(kind string) string {
	return q.prefix + "." + kind
}

func (q *Queue) RecordQuery(ctx context.Context, record domain.QueryLogRecord) error {
	return q.publish(ctx, Event{Kind: KindQuery, Query: &record})
}

func (q *Queue) RecordFeedback(ctx context.Context, record domain.FeedbackRecord) error {
	return q.publish(ctx, Event{Kind: KindFeedback, Feedback: &record})
}

func (q *Queue) publish(ctx context.Context, event Event) error {
	event.Published = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Kind, err)
	}
	subject := q.Subject(event.Kind)

	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// Subscribe consumes query and feedback events until ctx is done and writes
// each one to sink. Workers share a queue group so every event is stored once.
func (q *Queue) Subscribe(ctx context.Context, sink ports.InteractionLog, observe func(kind string, lag time.Duration, err error)) error {
	sub, err := q.conn.QueueSubscribe(q.prefix+".*", workerQueue, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		event, err := Dispatch(handlerCtx, msg.Data, sink)
		if err != nil {
			q.logger.Error("interaction_event_failed", "subject", msg.Subject, "error", err)
		}
		if observe != nil {
			observe(event.Kind, time.Since(event.Published), err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// Dispatch decodes one event and forwards it to sink.
func Dispatch(ctx context.Context, data []byte, sink ports.InteractionLog) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return event, domain.WrapError(domain.ErrInvalidInput, "decode interaction event", err)
	}
	switch {
	case event.Kind == KindQuery && event.Query != nil:
		return event, sink.RecordQuery(ctx, *event.Query)
	case event.Kind == KindFeedback && event.Feedback != nil:
		return event, sink.RecordFeedback(ctx, *event.Feedback)
	default:
		return event, domain.WrapError(domain.ErrInvalidInput, "dispatch interaction event", fmt.Errorf("unknown event kind %q", event.Kind))
	}
}
