package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/liliganster/tp-companion/internal/infrastructure/resilience"
)

const workerQueueGroup = "extraction-workers"

// jobQueuedEvent is the payload on the queued-jobs subject.
type jobQueuedEvent struct {
	JobID    string    `json:"jobId"`
	QueuedAt time.Time `json:"queuedAt"`
}

type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
	onLag          func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	HandlerTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
	// OnLag receives the delay between publish and delivery of each event.
	OnLag func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.RetryOnFailedConnect == nil {
		retry := true
		o.RetryOnFailedConnect = &retry
	}
	if o.HandlerTimeout <= 0 {
		o.HandlerTimeout = 5 * time.Minute
	}
	return o
}

func (o Options) connectOptions() []nats.Option {
	return []nats.Option{
		nats.Name("tp-companion"),
		nats.Timeout(o.ConnectTimeout),
		nats.ReconnectWait(o.ReconnectWait),
		nats.MaxReconnects(o.MaxReconnects),
		nats.RetryOnFailedConnect(*o.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Info("nats_closed")
		}),
	}
}

// New connects to url. With RetryOnFailedConnect (the default) an
// unreachable server is not an error; the client keeps retrying in the
// background and publishes fail as temporary until it connects.
func New(url, subject string, options Options) (*Queue, error) {
	options = options.withDefaults()
	conn, err := nats.Connect(url, options.connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
		onLag:          options.OnLag,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Ping reports whether the connection is usable, for health checks.
func (q *Queue) Ping(context.Context) error {
	if q.conn == nil || !q.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	return nil
}

func (q *Queue) PublishJobQueued(ctx context.Context, jobID string) error {
	payload, err := json.Marshal(jobQueuedEvent{JobID: jobID, QueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal queued event: %w", err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
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
		return publishError(err)
	}
	return nil
}

// SubscribeJobQueued blocks until ctx is done, handing each queued job to
// handler. Messages are load-balanced across workers in one queue group.
func (q *Queue) SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Error("queued_event_invalid", "error", err)
			return
		}
		if q.onLag != nil && !event.QueuedAt.IsZero() {
			q.onLag(time.Since(event.QueuedAt))
		}
		jobID := event.JobID

		handlerCtx, cancel := context.WithTimeout(ctx, q.handlerTimeout)
		defer cancel()
		if err := handler(handlerCtx, jobID); err != nil {
			slog.Error("worker_handler_failed", "job_id", jobID, "error", err)
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

// decodeEvent accepts the JSON event and a bare job id.
func decodeEvent(data []byte) (jobQueuedEvent, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return jobQueuedEvent{}, errors.New("empty payload")
	}
	if !strings.HasPrefix(raw, "{") {
		return jobQueuedEvent{JobID: raw}, nil
	}
	var event jobQueuedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return jobQueuedEvent{}, fmt.Errorf("decode queued event: %w", err)
	}
	if strings.TrimSpace(event.JobID) == "" {
		return jobQueuedEvent{}, errors.New("queued event without job id")
	}
	return event, nil
}
