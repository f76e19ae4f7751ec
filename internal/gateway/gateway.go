// Package gateway is the only path from the order engine to the document
// store. It addresses orders by ID, holds no state and applies no business
// rules; it maps backend failures onto the models error taxonomy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/record"
	"github.com/mmynk/grouporder/internal/storage"
)

// Gateway reads and writes order documents.
type Gateway struct {
	store   storage.DocumentStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records every store call on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway over store.
func New(store storage.DocumentStore, opts ...Option) *Gateway {
	g := &Gateway{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stored is a raw order document as listed from the store.
type Stored struct {
	ID  string
	Raw []byte
}

// Create stores a new order. Returns models.ErrAlreadyExists if the name
// is taken.
func (g *Gateway) Create(ctx context.Context, id string, payload record.Payload) (err error) {
	defer g.observe("create", time.Now(), &err)

	doc, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("encode order %s: %w", id, err)
	}
	if err := g.store.Create(ctx, id, doc); err != nil {
		return classify("create", id, err)
	}
	return nil
}

// Get returns the raw order document. Returns models.ErrNotFound if it does
// not exist.
func (g *Gateway) Get(ctx context.Context, id string) (raw []byte, err error) {
	defer g.observe("get", time.Now(), &err)

	snap, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, classify("get", id, err)
	}
	return snap.Data, nil
}

// ReplaceParticipants overwrites both participant arrays in one atomic
// update. Other fields are left as stored.
func (g *Gateway) ReplaceParticipants(ctx context.Context, id string, payload record.Payload) (err error) {
	defer g.observe("replace_participants", time.Now(), &err)

	fields, err := payload.ParticipantFields()
	if err != nil {
		return fmt.Errorf("encode participants of %s: %w", id, err)
	}
	if err := g.store.Update(ctx, id, fields); err != nil {
		return classify("replace participants", id, err)
	}
	return nil
}

// AppendParticipantIfAbsent union-inserts entry into both arrays. Duplicate
// suppression is by value, not identity: an entry for the same participant
// with a different selection is appended again.
func (g *Gateway) AppendParticipantIfAbsent(ctx context.Context, id string, entry models.ParticipantEntry) (err error) {
	defer g.observe("append_participant", time.Now(), &err)

	values, err := record.EntryFields(entry)
	if err != nil {
		return fmt.Errorf("encode participant of %s: %w", id, err)
	}
	if err := g.store.ArrayUnion(ctx, id, values); err != nil {
		return classify("append participant", id, err)
	}
	return nil
}

// Delete removes the order. Deleting a missing order is not an error.
func (g *Gateway) Delete(ctx context.Context, id string) (err error) {
	defer g.observe("delete", time.Now(), &err)

	if err := g.store.Delete(ctx, id); err != nil {
		return classify("delete", id, err)
	}
	return nil
}

// List returns every stored order, newest first.
func (g *Gateway) List(ctx context.Context) (docs []Stored, err error) {
	defer g.observe("list", time.Now(), &err)

	snaps, err := g.store.List(ctx)
	if err != nil {
		return nil, classify("list", "", err)
	}
	docs = make([]Stored, 0, len(snaps))
	for _, s := range snaps {
		docs = append(docs, Stored{ID: s.ID, Raw: s.Data})
	}
	return docs, nil
}

// Subscribe calls onChange with the current document right away and again
// after every mutation, own writes included. A missing or deleted order is
// delivered as models.ErrNotFound. Calls for one subscription never overlap.
func (g *Gateway) Subscribe(ctx context.Context, id string, onChange func(raw []byte, err error)) (unsubscribe func(), err error) {
	defer g.observe("subscribe", time.Now(), &err)

	stop, err := g.store.Watch(ctx, id, func(s storage.Snapshot) {
		if !s.Exists {
			onChange(nil, fmt.Errorf("order %s: %w", id, models.ErrNotFound))
			return
		}
		onChange(s.Data, nil)
	})
	if err != nil {
		return nil, classify("subscribe", id, err)
	}
	return stop, nil
}

func (g *Gateway) observe(op string, start time.Time, err *error) {
	g.metrics.ObserveStore(op, start, *err)
	if *err != nil && errors.Is(*err, models.ErrUnavailable) {
		g.logger.Warn("Order store call failed", "op", op, "error", *err)
	}
}

// classify maps a backend error onto the models taxonomy. Context errors
// pass through so callers can tell cancellation from an outage.
func classify(op, id string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s order %s: %w", op, id, models.ErrNotFound)
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%s order %s: %w", op, id, models.ErrAlreadyExists)
	case errors.Is(err, storage.ErrReadOnly):
		return fmt.Errorf("%s order %s: %w: %v", op, id, models.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%s order %s: %w: %v", op, id, models.ErrUnavailable, err)
	}
}
