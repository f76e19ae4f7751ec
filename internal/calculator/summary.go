package calculator

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mmynk/grouporder/internal/models"
)

// DefaultLocale is the collation locale for product names.
var DefaultLocale = language.Spanish

// Line is one product of the aggregated order.
type Line struct {
	Category  models.Category
	ProductID string
	Name      string
	Count     int
	// Contributors holds display names in first-seen (join) order.
	Contributors []string
}

// CategoryTotal counts the selections of one category.
type CategoryTotal struct {
	Category models.Category
	Count    int
	Products int
}

// ParticipantTotal counts one participant's selections.
type ParticipantTotal struct {
	Identity    string
	DisplayName string
	Count       int
}

// Summary is the grouped view of every participant's selection.
type Summary struct {
	Lines        []Line
	Categories   []CategoryTotal
	Participants []ParticipantTotal
	Total        int
}

type options struct {
	locale language.Tag
}

// Option configures Summarize.
type Option func(*options)

// WithLocale sets the collation locale used to order product names.
func WithLocale(tag language.Tag) Option {
	return func(o *options) { o.locale = tag }
}

type lineKey struct {
	category models.Category
	id       string
}

// Summarize groups every selected product by (category, product ID).
//
// Lines are sorted by category precedence (food, drink, then any unknown
// category alphabetically), then by name under the locale's collation,
// then by product ID. Summarize has no side effects and does not retain
// order.
func Summarize(order *models.Order, opts ...Option) Summary {
	o := options{locale: DefaultLocale}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		lines   []*Line
		index   = make(map[lineKey]*Line)
		seen    = make(map[lineKey]map[string]bool)
		summary Summary
	)

	if order == nil {
		return summary
	}

	summary.Participants = make([]ParticipantTotal, 0, len(order.Participants))
	for _, p := range order.Participants {
		name := p.DisplayName
		if name == "" {
			name = p.Identity
		}
		summary.Participants = append(summary.Participants, ParticipantTotal{
			Identity:    p.Identity,
			DisplayName: name,
			Count:       len(p.Products),
		})

		for _, ref := range p.Products {
			key := lineKey{category: ref.Category, id: ref.ID}
			line, ok := index[key]
			if !ok {
				line = &Line{Category: ref.Category, ProductID: ref.ID, Name: ref.Name}
				index[key] = line
				seen[key] = make(map[string]bool)
				lines = append(lines, line)
			}
			line.Count++
			if !seen[key][p.Identity] {
				seen[key][p.Identity] = true
				line.Contributors = append(line.Contributors, name)
			}
			summary.Total++
		}
	}

	col := collate.New(o.locale)
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.Category != b.Category {
			return categoryLess(a.Category, b.Category)
		}
		if c := col.CompareString(a.Name, b.Name); c != 0 {
			return c < 0
		}
		return a.ProductID < b.ProductID
	})

	summary.Lines = make([]Line, 0, len(lines))
	for _, line := range lines {
		summary.Lines = append(summary.Lines, *line)
		n := len(summary.Categories)
		if n == 0 || summary.Categories[n-1].Category != line.Category {
			summary.Categories = append(summary.Categories, CategoryTotal{Category: line.Category})
			n++
		}
		summary.Categories[n-1].Count += line.Count
		summary.Categories[n-1].Products++
	}
	return summary
}

// categoryLess orders known categories by precedence, ahead of unknown ones.
func categoryLess(a, b models.Category) bool {
	pa, pb := precedence(a), precedence(b)
	if pa != pb {
		return pa < pb
	}
	return a < b
}

func precedence(c models.Category) int {
	for i, known := range models.Categories {
		if c == known {
			return i
		}
	}
	return len(models.Categories)
}
