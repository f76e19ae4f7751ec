// Package livesync feeds change notifications for an open order into an
// edit session and emits a recomputed view after each one.
package livesync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/models"
)

// Source delivers raw order documents as they change.
type Source interface {
	Subscribe(ctx context.Context, id string, onChange func(raw []byte, err error)) (func(), error)
}

// Normalizer converts a raw document to a canonical order.
type Normalizer interface {
	Normalize(ctx context.Context, id string, raw []byte) (*models.Order, error)
}

// Merger is the edit session side of a merge.
type Merger interface {
	ApplyRemote(order *models.Order) bool
	Selection() []models.ProductRef
}

// View is what a participant sees after a notification.
type View struct {
	// Order is the remote order as stored.
	Order *models.Order
	// Selection is the participant's local selection, which may be ahead
	// of Order while an edit is pending.
	Selection []models.ProductRef
	Summary   calculator.Summary
	// Applied reports whether the remote entry replaced the selection.
	Applied bool
}

// Handlers receive the outcome of each notification. Calls for one
// attachment never overlap.
type Handlers struct {
	OnUpdate func(View)
	// OnGone is called once when the order is deleted or unreadable.
	// No handler is called after it.
	OnGone func()
	// OnError receives transient failures; the attachment stays live.
	OnError func(error)
}

// Controller attaches sessions to the change feed.
type Controller struct {
	source     Source
	normalizer Normalizer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	summarize  []calculator.Option
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSummaryOptions passes options to calculator.Summarize.
func WithSummaryOptions(opts ...calculator.Option) Option {
	return func(c *Controller) { c.summarize = opts }
}

// NewController creates a Controller.
func NewController(source Source, normalizer Normalizer, opts ...Option) *Controller {
	c := &Controller{source: source, normalizer: normalizer, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach subscribes to orderID and merges every notification into m.
// The returned function detaches; it may be called more than once.
func (c *Controller) Attach(ctx context.Context, orderID string, m Merger, h Handlers) (func(), error) {
	var (
		detached atomic.Bool
		goneOnce sync.Once
	)
	logger := c.logger.With("order_id", orderID)

	gone := func(err error) {
		goneOnce.Do(func() {
			detached.Store(true)
			logger.Info("Order gone", "error", err)
			if h.OnGone != nil {
				h.OnGone()
			}
		})
	}

	onChange := func(raw []byte, err error) {
		if detached.Load() {
			return
		}
		c.metrics.Notified()

		var order *models.Order
		if err == nil {
			order, err = c.normalizer.Normalize(ctx, orderID, raw)
		}
		if err != nil {
			if models.IsGone(err) {
				gone(err)
				return
			}
			logger.Warn("Change notification failed", "error", err)
			if h.OnError != nil {
				h.OnError(err)
			}
			return
		}

		applied := m.ApplyRemote(order)
		if h.OnUpdate != nil {
			h.OnUpdate(View{
				Order:     order,
				Selection: m.Selection(),
				Summary:   calculator.Summarize(order, c.summarize...),
				Applied:   applied,
			})
		}
	}

	unsubscribe, err := c.source.Subscribe(ctx, orderID, onChange)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			detached.Store(true)
			unsubscribe()
		})
	}, nil
}
