// Command seed fills the product catalog and can issue a token for local
// testing.
//
//	DB_PATH=./data/orders.db JWT_SECRET=dev go run ./cmd/seed -email ana@example.com -name Ana
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/config"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage/sqlite"
	"github.com/mmynk/grouporder/pkg/logging"
)

// catalogNamespace derives stable product IDs so reseeding updates in place.
var catalogNamespace = uuid.MustParse("6f1c1d2e-8a43-4b8e-9d51-5a0f3c7e2b10")

var defaultCatalog = []struct {
	name     string
	category models.Category
}{
	{"Bocadillo de tortilla", models.CategoryFood},
	{"Bocadillo de jamón", models.CategoryFood},
	{"Bocadillo de calamares", models.CategoryFood},
	{"Croissant", models.CategoryFood},
	{"Tostada con tomate", models.CategoryFood},
	{"Ensalada mixta", models.CategoryFood},
	{"Café solo", models.CategoryDrink},
	{"Café con leche", models.CategoryDrink},
	{"Cortado", models.CategoryDrink},
	{"Zumo de naranja", models.CategoryDrink},
	{"Agua", models.CategoryDrink},
	{"Caña", models.CategoryDrink},
}

func main() {
	email := flag.String("email", "", "issue a token for this identity")
	name := flag.String("name", "", "display name carried in the issued token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := seed(context.Background(), cfg.DBPath); err != nil {
		slog.Error("Seeding failed", "error", err)
		os.Exit(1)
	}

	if *email != "" {
		token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).Generate(models.Identity{Key: *email, DisplayName: *name})
		if err != nil {
			slog.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
	}
}

func seed(ctx context.Context, dbPath string) error {
	store, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, p := range defaultCatalog {
		product := models.Product{
			ID:       uuid.NewSHA1(catalogNamespace, []byte(p.name)).String(),
			Name:     p.name,
			Category: p.category,
		}
		if err := store.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("seed %q: %w", p.name, err)
		}
	}
	slog.Info("Catalog seeded", "database", dbPath, "products", len(defaultCatalog))
	return nil
}
