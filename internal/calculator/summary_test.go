package calculator

import (
	"reflect"
	"testing"

	"golang.org/x/text/language"

	"github.com/mmynk/grouporder/internal/models"
)

func food(id, name string) models.ProductRef {
	return models.ProductRef{ID: id, Name: name, Category: models.CategoryFood}
}

func drink(id, name string) models.ProductRef {
	return models.ProductRef{ID: id, Name: name, Category: models.CategoryDrink}
}

func entry(identity, name string, refs ...models.ProductRef) models.ParticipantEntry {
	return models.ParticipantEntry{Identity: identity, DisplayName: name, Products: refs}
}

func lineNames(s Summary) []string {
	var names []string
	for _, l := range s.Lines {
		names = append(names, l.Name)
	}
	return names
}

func TestSummarizeSharedProduct(t *testing.T) {
	p1 := food("p1", "Tortilla")
	order := &models.Order{Participants: []models.ParticipantEntry{
		entry("a@example.com", "Ana", p1),
		entry("b@example.com", "Ben", p1),
	}}

	s := Summarize(order)
	if len(s.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(s.Lines))
	}
	line := s.Lines[0]
	if line.Count != 2 {
		t.Errorf("count = %d, want 2", line.Count)
	}
	if want := []string{"Ana", "Ben"}; !reflect.DeepEqual(line.Contributors, want) {
		t.Errorf("contributors = %v, want %v", line.Contributors, want)
	}
	if s.Total != 2 {
		t.Errorf("total = %d, want 2", s.Total)
	}
}

func TestSummarizeOrdering(t *testing.T) {
	order := &models.Order{Participants: []models.ParticipantEntry{
		entry("a@example.com", "Ana",
			drink("d1", "agua"),
			models.ProductRef{ID: "x1", Name: "Servilletas", Category: "extra"},
			food("f1", "Olivas"),
			food("f2", "Ñoquis"),
		),
		entry("b@example.com", "Ben",
			food("f3", "Nachos"),
			drink("d2", "Cerveza"),
			models.ProductRef{ID: "x2", Name: "Aceite", Category: "condimento"},
			food("f4", "Bocadillo"),
		),
	}}

	s := Summarize(order)

	want := []string{
		// food, Spanish collation: ñ after n, before o
		"Bocadillo", "Nachos", "Ñoquis", "Olivas",
		// drink, case does not outrank letters
		"agua", "Cerveza",
		// unknown categories alphabetically
		"Aceite", "Servilletas",
	}
	if got := lineNames(s); !reflect.DeepEqual(got, want) {
		t.Errorf("line order = %v, want %v", got, want)
	}

	wantCategories := []CategoryTotal{
		{Category: models.CategoryFood, Count: 4, Products: 4},
		{Category: models.CategoryDrink, Count: 2, Products: 2},
		{Category: "condimento", Count: 1, Products: 1},
		{Category: "extra", Count: 1, Products: 1},
	}
	if !reflect.DeepEqual(s.Categories, wantCategories) {
		t.Errorf("categories = %+v, want %+v", s.Categories, wantCategories)
	}

	wantParticipants := []ParticipantTotal{
		{Identity: "a@example.com", DisplayName: "Ana", Count: 4},
		{Identity: "b@example.com", DisplayName: "Ben", Count: 4},
	}
	if !reflect.DeepEqual(s.Participants, wantParticipants) {
		t.Errorf("participants = %+v", s.Participants)
	}
}

func TestSummarizeNameTieBreaksOnID(t *testing.T) {
	order := &models.Order{Participants: []models.ParticipantEntry{
		entry("a@example.com", "Ana", food("p2", "Tapa"), food("p1", "Tapa")),
	}}

	s := Summarize(order)
	if s.Lines[0].ProductID != "p1" || s.Lines[1].ProductID != "p2" {
		t.Errorf("expected ID tie-break, got %+v", s.Lines)
	}
}

func TestSummarizeDeterminism(t *testing.T) {
	p1, p2, p3 := food("p1", "Tortilla"), drink("p2", "Caña"), food("p3", "Croquetas")

	first := &models.Order{Participants: []models.ParticipantEntry{
		entry("a@example.com", "Ana", p1, p2),
		entry("b@example.com", "Ben", p3, p1),
	}}
	second := &models.Order{Participants: []models.ParticipantEntry{
		entry("b@example.com", "Ben", p1, p3),
		entry("a@example.com", "Ana", p2, p1),
	}}

	a, b := Summarize(first), Summarize(second)
	if !reflect.DeepEqual(lineNames(a), lineNames(b)) {
		t.Fatalf("line order differs: %v vs %v", lineNames(a), lineNames(b))
	}
	for i := range a.Lines {
		if a.Lines[i].Count != b.Lines[i].Count {
			t.Errorf("line %s count differs", a.Lines[i].Name)
		}
		if len(a.Lines[i].Contributors) != len(b.Lines[i].Contributors) {
			t.Errorf("line %s contributors differ", a.Lines[i].Name)
		}
	}
	if !reflect.DeepEqual(a.Categories, b.Categories) {
		t.Errorf("categories differ: %+v vs %+v", a.Categories, b.Categories)
	}

	// Contributors follow join order.
	if got := b.Lines[len(b.Lines)-1].Name; got != "Caña" {
		t.Fatalf("expected drink last, got %s", got)
	}
	for _, l := range b.Lines {
		if l.ProductID == "p1" && !reflect.DeepEqual(l.Contributors, []string{"Ben", "Ana"}) {
			t.Errorf("p1 contributors = %v, want join order", l.Contributors)
		}
	}

	// Repeated calls are independent.
	if !reflect.DeepEqual(Summarize(first), a) {
		t.Error("Summarize is not repeatable")
	}
}

func TestSummarizeEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		order *models.Order
		total int
		lines int
	}{
		{name: "nil order", order: nil},
		{name: "no participants", order: &models.Order{}},
		{
			name:  "participants without products",
			order: &models.Order{Participants: []models.ParticipantEntry{entry("a", "A"), entry("b", "")}},
		},
		{
			name: "same name across participants",
			order: &models.Order{Participants: []models.ParticipantEntry{
				entry("a1@example.com", "Ana", food("p1", "Tortilla")),
				entry("a2@example.com", "Ana", food("p1", "Tortilla")),
			}},
			total: 2,
			lines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.order)
			if s.Total != tt.total || len(s.Lines) != tt.lines {
				t.Errorf("got total %d lines %d, want %d/%d", s.Total, len(s.Lines), tt.total, tt.lines)
			}
		})
	}
}

func TestSummarizeLocale(t *testing.T) {
	order := &models.Order{Participants: []models.ParticipantEntry{
		entry("a", "A", food("1", "Ñoquis"), food("2", "Olivas")),
	}}

	if got := lineNames(Summarize(order)); got[0] != "Ñoquis" {
		t.Errorf("Spanish: got %v", got)
	}
	// Byte order puts Ñ after O; any locale's collator places it near N.
	if got := lineNames(Summarize(order, WithLocale(language.English))); got[0] != "Ñoquis" {
		t.Errorf("English: got %v", got)
	}
}
