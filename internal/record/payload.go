package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmynk/grouporder/internal/models"
)

// Field names of the two participant layouts.
const (
	FieldParticipants = "participants"
	FieldUsuarios     = "usuarios"
)

// Payload is the persisted order document. Both layouts are always
// populated with the same participants so readers of either keep working.
type Payload struct {
	Name          string         `json:"name"`
	Nombre        string         `json:"nombre"`
	CreatedAt     string         `json:"createdAt"`
	FechaCreacion string         `json:"fechaCreacion"`
	CreatedBy     string         `json:"createdBy"`
	Participants  []LegacyEntry  `json:"participants"`
	Usuarios      []CurrentEntry `json:"usuarios"`
}

// LegacyEntry is the older participant layout. Products are bare IDs.
type LegacyEntry struct {
	UserID   string   `json:"userId"`
	UserName string   `json:"userName"`
	Products []string `json:"products"`
	Version  int64    `json:"version,omitempty"`
}

// CurrentEntry is the newer participant layout with embedded products.
type CurrentEntry struct {
	Email     string       `json:"email"`
	Nombre    string       `json:"nombre"`
	Productos []ProductDoc `json:"productos"`
	Version   int64        `json:"version,omitempty"`
}

// ProductDoc is a product snapshot embedded in a CurrentEntry.
type ProductDoc struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
	Tipo   string `json:"tipo"`
}

// Denormalize builds the write payload for a canonical order.
func Denormalize(order *models.Order) Payload {
	created := ""
	if !order.CreatedAt.IsZero() {
		created = order.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	name := order.Name
	if name == "" {
		name = order.ID
	}

	p := Payload{
		Name:          name,
		Nombre:        name,
		CreatedAt:     created,
		FechaCreacion: created,
		CreatedBy:     order.CreatedBy,
		Participants:  make([]LegacyEntry, 0, len(order.Participants)),
		Usuarios:      make([]CurrentEntry, 0, len(order.Participants)),
	}
	for _, entry := range order.Participants {
		legacy, current := denormalizeEntry(entry)
		p.Participants = append(p.Participants, legacy)
		p.Usuarios = append(p.Usuarios, current)
	}
	return p
}

func denormalizeEntry(entry models.ParticipantEntry) (LegacyEntry, CurrentEntry) {
	legacy := LegacyEntry{
		UserID:   entry.Identity,
		UserName: entry.DisplayName,
		Products: make([]string, 0, len(entry.Products)),
		Version:  entry.Version,
	}
	current := CurrentEntry{
		Email:     entry.Identity,
		Nombre:    entry.DisplayName,
		Productos: make([]ProductDoc, 0, len(entry.Products)),
		Version:   entry.Version,
	}
	for _, ref := range entry.Products {
		legacy.Products = append(legacy.Products, ref.ID)
		current.Productos = append(current.Productos, ProductDoc{
			ID:     ref.ID,
			Nombre: ref.Name,
			Tipo:   string(ref.Category),
		})
	}
	return legacy, current
}

// Marshal encodes the full document.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// ParticipantFields returns both participant arrays, ready for a
// whole-field overwrite.
func (p Payload) ParticipantFields() (map[string]json.RawMessage, error) {
	legacy, err := json.Marshal(p.Participants)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", FieldParticipants, err)
	}
	current, err := json.Marshal(p.Usuarios)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", FieldUsuarios, err)
	}
	return map[string]json.RawMessage{
		FieldParticipants: legacy,
		FieldUsuarios:     current,
	}, nil
}

// EntryFields returns one entry in both layouts, for a union insert.
func EntryFields(entry models.ParticipantEntry) (map[string][]json.RawMessage, error) {
	legacy, current := denormalizeEntry(entry)
	l, err := json.Marshal(legacy)
	if err != nil {
		return nil, fmt.Errorf("encode legacy entry: %w", err)
	}
	c, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode current entry: %w", err)
	}
	return map[string][]json.RawMessage{
		FieldParticipants: {l},
		FieldUsuarios:     {c},
	}, nil
}
