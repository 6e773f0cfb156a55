// Package notify delivers fire-and-forget webhook notifications to
// admin-configured URLs.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	svix "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/resilience"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var tracer = otel.Tracer("notify")

var _ port.Notifier = (*Dispatcher)(nil)

// Delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Recorder counts delivery outcomes. *observability.Metrics satisfies it.
type Recorder interface {
	IncrNotification(event, outcome string)
}

// Config controls the dispatcher.
type Config struct {
	// Secret signs bodies with standard-webhooks headers when set ("whsec_<base64>").
	Secret         string
	Timeout        time.Duration
	MaxConcurrency int
}

// Dispatcher posts each notification on its own goroutine, detached from
// the caller's context and bounded by a bulkhead. Failures are logged and
// counted, never retried.
type Dispatcher struct {
	client   *resty.Client
	signer   *svix.Webhook
	bulkhead *resilience.Bulkhead
	timeout  time.Duration
	metrics  Recorder
	logger   *zap.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a dispatcher. An invalid secret is a configuration error.
func New(cfg Config, metrics Recorder, logger *zap.Logger) (*Dispatcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}

	var signer *svix.Webhook
	if cfg.Secret != "" {
		wh, err := svix.NewWebhook(cfg.Secret)
		if err != nil {
			return nil, fmt.Errorf("invalid outbound webhook secret: %w", err)
		}
		signer = wh
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "portal-membros-notify/1.0")

	return &Dispatcher{
		client:   client,
		signer:   signer,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		timeout:  cfg.Timeout,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Dispatch schedules n for delivery and returns immediately.
// Notifications without a URL are skipped.
func (d *Dispatcher) Dispatch(n domain.Notification) {
	if n.URL == "" {
		d.logger.Debug("notification skipped: no webhook configured", zap.String("event", n.Event))
		return
	}
	if d.closed.Load() {
		d.logger.Warn("notification dropped: dispatcher closed", zap.String("event", n.Event))
		d.record(n.Event, OutcomeDropped)
		return
	}
	if n.ID == "" {
		n.ID = "msg_" + uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.bulkhead.Acquire(ctx); err != nil {
			d.logger.Warn("notification dropped: too many in flight",
				zap.String("event", n.Event),
				zap.String("notification_id", n.ID),
			)
			d.record(n.Event, OutcomeDropped)
			return
		}
		defer d.bulkhead.Release()

		if err := d.send(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("event", n.Event),
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
			d.record(n.Event, OutcomeFailed)
			return
		}

		d.logger.Info("notification delivered",
			zap.String("event", n.Event),
			zap.String("notification_id", n.ID),
		)
		d.record(n.Event, OutcomeSent)
	}()
}

func (d *Dispatcher) send(ctx context.Context, n domain.Notification) error {
	ctx, span := tracer.Start(ctx, "Dispatcher.Send")
	defer span.End()
	span.SetAttributes(attribute.String("notification.event", n.Event))

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req := d.client.R().SetContext(ctx).SetBody(body)
	if d.signer != nil {
		sig, err := d.signer.Sign(n.ID, n.CreatedAt, body)
		if err != nil {
			return fmt.Errorf("sign notification: %w", err)
		}
		req.SetHeader("webhook-id", n.ID).
			SetHeader("webhook-timestamp", strconv.FormatInt(n.CreatedAt.Unix(), 10)).
			SetHeader("webhook-signature", sig)
	}

	resp, err := req.Post(n.URL)
	if err != nil {
		return &domain.ErrExternalService{Service: "webhook", Err: err}
	}
	if resp.IsError() {
		return &domain.ErrExternalService{Service: "webhook", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return nil
}

func (d *Dispatcher) record(event, outcome string) {
	if d.metrics != nil {
		d.metrics.IncrNotification(event, outcome)
	}
}

// Close stops accepting notifications and waits for in-flight deliveries
// until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closed.Store(true)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
