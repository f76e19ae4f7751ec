package models

import (
	"errors"
	"fmt"
	"testing"
)

func ids(refs []ProductRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ID)
	}
	return out
}

func TestToggle(t *testing.T) {
	a := ProductRef{ID: "a", Name: "Tortilla", Category: CategoryFood}
	b := ProductRef{ID: "b", Name: "Caña", Category: CategoryDrink}

	tests := []struct {
		name string
		in   []ProductRef
		ref  ProductRef
		want []string
	}{
		{name: "add to empty", in: nil, ref: a, want: []string{"a"}},
		{name: "append keeps order", in: []ProductRef{a}, ref: b, want: []string{"a", "b"}},
		{name: "remove present", in: []ProductRef{a, b}, ref: a, want: []string{"b"}},
		{name: "remove last", in: []ProductRef{b}, ref: b, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := ids(tt.in)
			got := ids(Toggle(tt.in, tt.ref))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Toggle = %v, want %v", got, tt.want)
			}
			if fmt.Sprint(ids(tt.in)) != fmt.Sprint(before) {
				t.Errorf("input modified: %v", ids(tt.in))
			}
		})
	}
}

func TestUpsert(t *testing.T) {
	order := &Order{ID: "lunch", Participants: []ParticipantEntry{
		{Identity: "ana@example.com", DisplayName: "Ana"},
		{Identity: "ben@example.com", DisplayName: "Ben"},
	}}

	replaced := order.Upsert(ParticipantEntry{Identity: "ana@example.com", DisplayName: "Ana", Version: 3})
	if len(replaced.Participants) != 2 || replaced.Participants[0].Version != 3 {
		t.Errorf("expected in-place replacement, got %+v", replaced.Participants)
	}
	if order.Participants[0].Version != 0 {
		t.Error("Upsert modified the original order")
	}

	appended := order.Upsert(ParticipantEntry{Identity: "cris@example.com"})
	if len(appended.Participants) != 3 || appended.Participants[2].Identity != "cris@example.com" {
		t.Errorf("expected append, got %+v", appended.Participants)
	}

	entry, i := appended.Participant("ben@example.com")
	if i != 1 || entry.DisplayName != "Ben" {
		t.Errorf("Participant = %+v, %d", entry, i)
	}
	if _, i := appended.Participant("nobody"); i != -1 {
		t.Errorf("expected -1 for a missing participant, got %d", i)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in    string
		want  Category
		known bool
	}{
		{"comida", CategoryFood, true},
		{" Food ", CategoryFood, true},
		{"BEBIDA", CategoryDrink, true},
		{"drink", CategoryDrink, true},
		{"Postre", Category("postre"), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseCategory(tt.in)
			if got != tt.want || got.Known() != tt.known {
				t.Errorf("ParseCategory(%q) = %q (known %v)", tt.in, got, got.Known())
			}
		})
	}
}

func TestIdentityName(t *testing.T) {
	if got := (Identity{Key: "ana@example.com", DisplayName: "Ana"}).Name(); got != "Ana" {
		t.Errorf("Name = %q", got)
	}
	if got := (Identity{Key: "ana@example.com", DisplayName: "  "}).Name(); got != "ana@example.com" {
		t.Errorf("Name = %q, want the key", got)
	}
}

func TestIsGone(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNotFound, true},
		{fmt.Errorf("order lunch: %w", ErrNotFound), true},
		{ErrMalformedRecord, true},
		{ErrUnavailable, false},
		{errors.New("boom"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsGone(tt.err); got != tt.want {
			t.Errorf("IsGone(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
