// Package orders implements the read-modify-write sequences on top of the
// gateway: creating an order, joining it, writing one participant's
// selection and deleting it.
//
// The store offers no per-entry update, so every selection write reads the
// whole order, replaces one entry in memory and writes both participant
// arrays back. Concurrent writers for different participants are serialized
// only by the store; the last full write wins.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/grouporder/internal/gateway"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/record"
)

// ErrInvalidName is returned by Create for a blank order name.
var ErrInvalidName = errors.New("order name required")

// Repository reads canonical orders and writes them back in both layouts.
type Repository struct {
	gateway    *gateway.Gateway
	normalizer *record.Normalizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewRepository creates a Repository.
func NewRepository(g *gateway.Gateway, n *record.Normalizer, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{gateway: g, normalizer: n, logger: logger, now: time.Now}
}

// Load returns the canonical order. A stored document that matches neither
// layout is reported as models.ErrNotFound wrapping the malformed error.
func (r *Repository) Load(ctx context.Context, id string) (*models.Order, error) {
	raw, err := r.gateway.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.normalize(ctx, id, raw)
}

func (r *Repository) normalize(ctx context.Context, id string, raw []byte) (*models.Order, error) {
	order, err := r.normalizer.Normalize(ctx, id, raw)
	if errors.Is(err, models.ErrMalformedRecord) {
		r.logger.Error("Unreadable order document", "order_id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", models.ErrNotFound, err)
	}
	return order, err
}

// Create stores a new, empty order named id. When join is set the creator
// is added as the first participant with an empty selection. If that join
// fails the order still exists; it is returned without participants and
// the creator joins when opening it.
func (r *Repository) Create(ctx context.Context, id string, creator models.Identity, join bool) (*models.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidName
	}

	order := &models.Order{
		ID:        id,
		Name:      id,
		CreatedAt: r.now().UTC(),
		CreatedBy: creator.Key,
	}
	if err := r.gateway.Create(ctx, id, record.Denormalize(order)); err != nil {
		return nil, err
	}
	r.logger.Info("Order created", "order_id", id, "created_by", creator.Key)

	if join {
		entry := models.ParticipantEntry{
			Identity:    creator.Key,
			DisplayName: creator.Name(),
			Products:    []models.ProductRef{},
		}
		if err := r.gateway.AppendParticipantIfAbsent(ctx, id, entry); err != nil {
			r.logger.Warn("Creator join failed", "order_id", id, "identity", creator.Key, "error", err)
			return order, nil
		}
		order.Participants = []models.ParticipantEntry{entry}
	}
	return order, nil
}

// EnsureJoined makes who a participant of the order, keyed by identity.
// It is a no-op when an entry for who already exists, whatever its
// selection. Returns the order as it was last written or read.
func (r *Repository) EnsureJoined(ctx context.Context, id string, who models.Identity) (*models.Order, error) {
	order, err := r.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, i := order.Participant(who.Key); i >= 0 {
		return order, nil
	}

	joined := order.Upsert(models.ParticipantEntry{
		Identity:    who.Key,
		DisplayName: who.Name(),
		Products:    []models.ProductRef{},
	})
	if err := r.gateway.ReplaceParticipants(ctx, id, record.Denormalize(joined)); err != nil {
		return nil, err
	}
	r.logger.Info("Participant joined", "order_id", id, "identity", who.Key)
	return joined, nil
}

// WriteSelection replaces who's selection with products at version.
// Entries of other participants are written back as just read.
func (r *Repository) WriteSelection(ctx context.Context, id string, who models.Identity, products []models.ProductRef, version int64) error {
	order, err := r.Load(ctx, id)
	if err != nil {
		return err
	}

	updated := order.Upsert(models.ParticipantEntry{
		Identity:    who.Key,
		DisplayName: who.Name(),
		Products:    models.CloneRefs(products),
		Version:     version,
	})
	if err := r.gateway.ReplaceParticipants(ctx, id, record.Denormalize(updated)); err != nil {
		return err
	}
	r.logger.Debug("Selection written",
		"order_id", id,
		"identity", who.Key,
		"products", len(products),
		"version", version,
	)
	return nil
}

// Delete removes the order. Only its creator may delete it; orders stored
// without a creator can be deleted by anyone.
func (r *Repository) Delete(ctx context.Context, id string, requester models.Identity) error {
	order, err := r.Load(ctx, id)
	if err != nil {
		return err
	}
	if order.CreatedBy != "" && order.CreatedBy != requester.Key {
		return fmt.Errorf("delete order %s: %w: only %s may delete it", id, models.ErrPermissionDenied, order.CreatedBy)
	}
	if err := r.gateway.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("Order deleted", "order_id", id, "deleted_by", requester.Key)
	return nil
}

// List returns every readable order, newest first. Unreadable documents are
// logged and skipped.
func (r *Repository) List(ctx context.Context) ([]*models.Order, error) {
	docs, err := r.gateway.List(ctx)
	if err != nil {
		return nil, err
	}

	orders := make([]*models.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := r.normalize(ctx, doc.ID, doc.Raw)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
