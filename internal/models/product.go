package models

import "strings"

// Category is the product type. The set is closed: every catalog product
// belongs to exactly one of the known categories.
type Category string

const (
	// CategoryFood is stored as "comida" in order documents and the catalog.
	CategoryFood Category = "comida"

	// CategoryDrink is stored as "bebida" in order documents and the catalog.
	CategoryDrink Category = "bebida"
)

// Categories lists the known categories in display precedence.
var Categories = []Category{CategoryFood, CategoryDrink}

// ParseCategory maps a stored or user-supplied category to a Category.
// Matching is case-insensitive and accepts the English aliases.
// Unknown values are returned lowercased so they still group consistently.
func ParseCategory(s string) Category {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "comida", "food":
		return CategoryFood
	case "bebida", "drink":
		return CategoryDrink
	default:
		return Category(v)
	}
}

// Known reports whether c is one of the closed category set.
func (c Category) Known() bool {
	return c == CategoryFood || c == CategoryDrink
}

// Product is a catalog entry. The order engine never mutates products.
type Product struct {
	// ID is the catalog identifier.
	ID string

	// Name is the display name (e.g., "Bocadillo de tortilla").
	Name string

	// Category is the product type.
	Category Category

	// Favorite is set when the viewing participant marked the product.
	// It is per viewer and never persisted on the product itself.
	Favorite bool
}

// Ref returns the snapshot stored inside a participant's selection.
func (p Product) Ref() ProductRef {
	return ProductRef{ID: p.ID, Name: p.Name, Category: p.Category}
}
