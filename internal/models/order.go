package models

import "time"

// Order is the canonical, layout-independent form of a shared order.
type Order struct {
	// ID is the human-chosen unique order name; it is the document key.
	ID string

	// Name is the display name. Equal to ID for orders created here, but
	// older documents may carry a different stored name.
	Name string

	// CreatedAt is when the order was created. Zero if the stored
	// document carried no readable timestamp.
	CreatedAt time.Time

	// CreatedBy is the identity key of the creator. Only the creator may
	// delete the order.
	CreatedBy string

	// Participants holds at most one entry per identity key.
	Participants []ParticipantEntry
}

// ParticipantEntry is one participant's selection inside an order.
type ParticipantEntry struct {
	// Identity is the stable participant key (email).
	Identity string

	// DisplayName is the name shown to other participants.
	DisplayName string

	// Products is the selection, unique by product ID.
	Products []ProductRef

	// Version is a per-participant monotonic sequence number bumped on
	// every selection write. Zero for entries written by older clients.
	Version int64
}

// ProductRef is a product snapshot taken at selection time.
type ProductRef struct {
	ID       string
	Name     string
	Category Category
}

// Participant returns the entry for identity and its index, or -1.
func (o *Order) Participant(identity string) (ParticipantEntry, int) {
	for i, p := range o.Participants {
		if p.Identity == identity {
			return p, i
		}
	}
	return ParticipantEntry{}, -1
}

// Upsert replaces the entry with the same identity, or appends it.
// The returned order shares no participant slice with o.
func (o *Order) Upsert(entry ParticipantEntry) *Order {
	out := *o
	out.Participants = make([]ParticipantEntry, 0, len(o.Participants)+1)
	replaced := false
	for _, p := range o.Participants {
		if p.Identity == entry.Identity {
			out.Participants = append(out.Participants, entry)
			replaced = true
			continue
		}
		out.Participants = append(out.Participants, p)
	}
	if !replaced {
		out.Participants = append(out.Participants, entry)
	}
	return &out
}

// IndexOf returns the index of productID in refs, or -1.
func IndexOf(refs []ProductRef, productID string) int {
	for i, r := range refs {
		if r.ID == productID {
			return i
		}
	}
	return -1
}

// Toggle returns a new selection with ref removed if present, or appended
// if absent. The input slice is not modified.
func Toggle(refs []ProductRef, ref ProductRef) []ProductRef {
	if i := IndexOf(refs, ref.ID); i >= 0 {
		out := make([]ProductRef, 0, len(refs)-1)
		out = append(out, refs[:i]...)
		return append(out, refs[i+1:]...)
	}
	out := make([]ProductRef, 0, len(refs)+1)
	out = append(out, refs...)
	return append(out, ref)
}

// CloneRefs copies a selection.
func CloneRefs(refs []ProductRef) []ProductRef {
	if refs == nil {
		return nil
	}
	out := make([]ProductRef, len(refs))
	copy(out, refs)
	return out
}
