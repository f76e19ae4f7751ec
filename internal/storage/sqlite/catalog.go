package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/grouporder/internal/models"
)

// UpsertProduct inserts or replaces a catalog product.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, product models.Product) error {
	query := `
		INSERT INTO products (id, name, category)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category
	`

	_, err := s.db.ExecContext(ctx, query,
		product.ID,
		product.Name,
		string(models.ParseCategory(string(product.Category))),
	)
	if err != nil {
		return classify("failed to upsert product", err)
	}

	return nil
}

// ListAll returns every product sorted by name.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.Product, error) {
	return s.queryProducts(ctx, "SELECT id, name, category FROM products ORDER BY name, id")
}

// ListByCategory returns the products of one category sorted by name.
func (s *SQLiteStore) ListByCategory(ctx context.Context, category models.Category) ([]models.Product, error) {
	return s.queryProducts(ctx,
		"SELECT id, name, category FROM products WHERE category = ? ORDER BY name, id",
		string(models.ParseCategory(string(category))),
	)
}

// ListByIDs retrieves multiple products by their IDs.
// Products that don't exist are omitted from the result.
func (s *SQLiteStore) ListByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// Build the IN clause with placeholders
	query := `
		SELECT id, name, category
		FROM products
		WHERE id IN (?` + repeatPlaceholder(len(ids)-1) + `)
		ORDER BY name, id`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return s.queryProducts(ctx, query, args...)
}

func (s *SQLiteStore) queryProducts(ctx context.Context, query string, args ...any) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to query products", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var (
			p        models.Product
			category string
		)
		if err := rows.Scan(&p.ID, &p.Name, &category); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Category = models.Category(category)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Favorites returns the product IDs a participant marked as favorite.
func (s *SQLiteStore) Favorites(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT product_id FROM favorites WHERE identity = ? ORDER BY product_id",
		identity,
	)
	if err != nil {
		return nil, classify("failed to get favorites", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorites: %w", err)
	}

	return ids, nil
}

// ToggleFavorite flips a favorite mark and reports whether it is now set.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, identity, productID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, classify("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM products WHERE id = ?", productID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: product %s", models.ErrNotFound, productID)
	}
	if err != nil {
		return false, classify("failed to look up product", err)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM favorites WHERE identity = ? AND product_id = ?",
		identity, productID,
	)
	if err != nil {
		return false, classify("failed to remove favorite", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	favorite := removed == 0
	if favorite {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO favorites (identity, product_id) VALUES (?, ?)",
			identity, productID,
		); err != nil {
			return false, classify("failed to add favorite", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, classify("failed to commit transaction", err)
	}

	return favorite, nil
}

// repeatPlaceholder returns a string of ", ?" repeated n times.
// Used for building IN clauses with multiple placeholders.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	result := ""
	for i := 0; i < n; i++ {
		result += ", ?"
	}
	return result
}
