// Package record converts stored order documents, in either historical
// layout, to the canonical models.Order and back. It is the only package
// that knows the persisted field names.
package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/grouporder/internal/models"
)

// ProductLookup resolves bare product IDs against the catalog.
type ProductLookup interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// Normalizer turns raw order documents into canonical orders.
type Normalizer struct {
	catalog ProductLookup
	logger  *slog.Logger
}

// NewNormalizer creates a Normalizer that resolves bare product IDs
// through catalog.
func NewNormalizer(catalog ProductLookup, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{catalog: catalog, logger: logger}
}

type rawDocument struct {
	Name          string          `json:"name"`
	Nombre        string          `json:"nombre"`
	CreatedAt     json.RawMessage `json:"createdAt"`
	FechaCreacion json.RawMessage `json:"fechaCreacion"`
	CreatedBy     string          `json:"createdBy"`
	Participants  json.RawMessage `json:"participants"`
	Usuarios      json.RawMessage `json:"usuarios"`
}

// rawEntry accepts every key either layout has used for an entry.
type rawEntry struct {
	Email     string          `json:"email"`
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	UserEmail string          `json:"userEmail"`
	Nombre    string          `json:"nombre"`
	Name      string          `json:"name"`
	UserName  string          `json:"userName"`
	Productos json.RawMessage `json:"productos"`
	Products  json.RawMessage `json:"products"`
	Version   int64           `json:"version"`
}

type rawProduct struct {
	ID       string `json:"id"`
	Nombre   string `json:"nombre"`
	Name     string `json:"name"`
	Tipo     string `json:"tipo"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

// pendingRef is a product reference that may still need a catalog lookup.
type pendingRef struct {
	ref      models.ProductRef
	resolved bool
}

type pendingEntry struct {
	entry models.ParticipantEntry
	refs  []pendingRef
}

// Normalize converts a raw document to the canonical order.
//
// The newer usuarios layout wins when both are present. Bare product IDs
// are resolved in one catalog call; IDs the catalog no longer knows are
// dropped. Returns models.ErrMalformedRecord if raw is empty or carries
// neither layout.
func (n *Normalizer) Normalize(ctx context.Context, id string, raw []byte) (*models.Order, error) {
	if !present(raw) {
		return nil, fmt.Errorf("%w: %s: empty document", models.ErrMalformedRecord, id)
	}

	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedRecord, id, err)
	}

	var (
		list       json.RawMessage
		currentFmt bool
	)
	switch {
	case present(doc.Usuarios):
		list, currentFmt = doc.Usuarios, true
	case present(doc.Participants):
		list = doc.Participants
	default:
		return nil, fmt.Errorf("%w: %s: no participant list", models.ErrMalformedRecord, id)
	}

	var entries []rawEntry
	if err := json.Unmarshal(list, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedRecord, id, err)
	}

	pending, err := n.decodeEntries(id, entries, currentFmt)
	if err != nil {
		return nil, err
	}

	participants, err := n.resolve(ctx, id, pending)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:           id,
		Name:         firstNonEmpty(doc.Nombre, doc.Name, id),
		CreatedAt:    parseTimestamp(doc.FechaCreacion),
		CreatedBy:    doc.CreatedBy,
		Participants: participants,
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = parseTimestamp(doc.CreatedAt)
	}
	return order, nil
}

func (n *Normalizer) decodeEntries(id string, entries []rawEntry, currentFmt bool) ([]pendingEntry, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]pendingEntry, 0, len(entries))

	for _, e := range entries {
		var identity, name string
		var products json.RawMessage
		if currentFmt {
			identity = firstNonEmpty(e.Email, e.ID, e.UserID)
			name = firstNonEmpty(e.Nombre, e.Name, e.UserName)
			products = e.Productos
			if !present(products) {
				products = e.Products
			}
		} else {
			identity = firstNonEmpty(e.UserID, e.UserEmail, e.Email)
			name = firstNonEmpty(e.UserName, e.Name, e.Nombre)
			products = e.Products
			if !present(products) {
				products = e.Productos
			}
		}

		if identity == "" {
			n.logger.Warn("Dropping participant entry without identity", "order_id", id)
			continue
		}
		if seen[identity] {
			n.logger.Warn("Dropping duplicate participant entry", "order_id", id, "identity", identity)
			continue
		}
		seen[identity] = true

		refs, err := decodeProducts(products)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: participant %s: %v", models.ErrMalformedRecord, id, identity, err)
		}

		out = append(out, pendingEntry{
			entry: models.ParticipantEntry{
				Identity:    identity,
				DisplayName: firstNonEmpty(name, identity),
				Version:     e.Version,
			},
			refs: refs,
		})
	}
	return out, nil
}

// decodeProducts reads a product list of bare IDs and/or embedded objects,
// keeping the first reference to each product ID.
func decodeProducts(raw json.RawMessage) ([]pendingRef, error) {
	if !present(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(items))
	refs := make([]pendingRef, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			continue
		}

		var ref pendingRef
		switch item[0] {
		case '"':
			var id string
			if err := json.Unmarshal(item, &id); err != nil {
				return nil, err
			}
			ref.ref.ID = id
		case '{':
			var p rawProduct
			if err := json.Unmarshal(item, &p); err != nil {
				return nil, err
			}
			ref.ref = models.ProductRef{
				ID:       p.ID,
				Name:     firstNonEmpty(p.Nombre, p.Name),
				Category: models.ParseCategory(firstNonEmpty(p.Tipo, p.Category, p.Type)),
			}
			ref.resolved = ref.ref.Name != "" && ref.ref.Category != ""
		default:
			var num json.Number
			if err := json.Unmarshal(item, &num); err != nil {
				continue // null, booleans: not a reference
			}
			ref.ref.ID = num.String()
		}

		ref.ref.ID = strings.TrimSpace(ref.ref.ID)
		if ref.ref.ID == "" || seen[ref.ref.ID] {
			continue
		}
		seen[ref.ref.ID] = true
		refs = append(refs, ref)
	}
	return refs, nil
}

// resolve looks up every unresolved reference in one catalog call.
func (n *Normalizer) resolve(ctx context.Context, id string, pending []pendingEntry) ([]models.ParticipantEntry, error) {
	var ids []string
	wanted := make(map[string]bool)
	for _, p := range pending {
		for _, r := range p.refs {
			if !r.resolved && !wanted[r.ref.ID] {
				wanted[r.ref.ID] = true
				ids = append(ids, r.ref.ID)
			}
		}
	}

	catalog := make(map[string]models.Product, len(ids))
	if len(ids) > 0 {
		if n.catalog == nil {
			return nil, fmt.Errorf("%w: no catalog to resolve %d products", models.ErrUnavailable, len(ids))
		}
		products, err := n.catalog.ListByIDs(ctx, ids)
		if err != nil {
			if errors.Is(err, models.ErrPermissionDenied) || errors.Is(err, models.ErrUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: resolve products: %v", models.ErrUnavailable, err)
		}
		for _, p := range products {
			catalog[p.ID] = p
		}
	}

	participants := make([]models.ParticipantEntry, 0, len(pending))
	for _, p := range pending {
		entry := p.entry
		entry.Products = make([]models.ProductRef, 0, len(p.refs))
		for _, r := range p.refs {
			if r.resolved {
				entry.Products = append(entry.Products, r.ref)
				continue
			}
			product, ok := catalog[r.ref.ID]
			if !ok {
				n.logger.Info("Dropping reference to missing product",
					"order_id", id,
					"identity", entry.Identity,
					"product_id", r.ref.ID,
				)
				continue
			}
			ref := product.Ref()
			if r.ref.Name != "" {
				ref.Name = r.ref.Name
			}
			entry.Products = append(entry.Products, ref)
		}
		participants = append(participants, entry)
	}
	return participants, nil
}

func present(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
