package orders

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmynk/grouporder/internal/gateway"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/record"
	"github.com/mmynk/grouporder/internal/storage"
	"github.com/mmynk/grouporder/internal/storage/sqlite"
)

var (
	ana = models.Identity{Key: "ana@example.com", DisplayName: "Ana"}
	ben = models.Identity{Key: "ben@example.com", DisplayName: "Ben"}

	tortilla = models.Product{ID: "p1", Name: "Tortilla", Category: models.CategoryFood}
	cana     = models.Product{ID: "p2", Name: "Caña", Category: models.CategoryDrink}
)

func setupRepository(t *testing.T) (*Repository, *sqlite.SQLiteStore) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, p := range []models.Product{tortilla, cana} {
		if err := store.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("failed to seed product: %v", err)
		}
	}
	return NewRepository(gateway.New(store), record.NewNormalizer(store, nil), nil), store
}

func TestCreateAndJoin(t *testing.T) {
	repo, store := setupRepository(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, "Friday Lunch", ana, false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, "Friday Lunch", ben, false); !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := repo.Create(ctx, "  ", ana, false); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}

	// Joining twice leaves one entry.
	for i := 0; i < 2; i++ {
		if _, err := repo.EnsureJoined(ctx, "Friday Lunch", ana); err != nil {
			t.Fatalf("EnsureJoined failed: %v", err)
		}
	}

	snap, err := store.Get(ctx, "Friday Lunch")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var doc struct {
		Participants []record.LegacyEntry  `json:"participants"`
		Usuarios     []record.CurrentEntry `json:"usuarios"`
	}
	if err := json.Unmarshal(snap.Data, &doc); err != nil {
		t.Fatalf("bad document: %v", err)
	}
	if len(doc.Participants) != 1 || len(doc.Usuarios) != 1 {
		t.Fatalf("expected one participant in each layout, got %s", snap.Data)
	}
	if doc.Participants[0].UserID != ana.Key || doc.Usuarios[0].Email != ana.Key {
		t.Errorf("layouts disagree on identity: %s", snap.Data)
	}
	if len(doc.Participants[0].Products) != 0 || len(doc.Usuarios[0].Productos) != 0 {
		t.Errorf("expected empty selection, got %s", snap.Data)
	}
}

func TestCreateWithJoin(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	order, err := repo.Create(ctx, "Team Dinner", ana, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(order.Participants) != 1 {
		t.Fatalf("expected creator to be joined, got %+v", order.Participants)
	}

	loaded, err := repo.Load(ctx, "Team Dinner")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.CreatedBy != ana.Key || loaded.Participants[0].DisplayName != "Ana" {
		t.Errorf("unexpected order %+v", loaded)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("expected creation time")
	}
}

func TestWriteSelection(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	repo.Create(ctx, "o", ana, true)
	if _, err := repo.EnsureJoined(ctx, "o", ben); err != nil {
		t.Fatalf("EnsureJoined failed: %v", err)
	}

	selection := []models.ProductRef{tortilla.Ref(), cana.Ref()}
	if err := repo.WriteSelection(ctx, "o", ben, selection, 4); err != nil {
		t.Fatalf("WriteSelection failed: %v", err)
	}

	order, err := repo.Load(ctx, "o")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(order.Participants) != 2 {
		t.Fatalf("expected both participants, got %+v", order.Participants)
	}
	entry, i := order.Participant(ben.Key)
	if i != 1 {
		t.Errorf("join order changed: ben at %d", i)
	}
	if len(entry.Products) != 2 || entry.Version != 4 {
		t.Errorf("unexpected entry %+v", entry)
	}
	if a, _ := order.Participant(ana.Key); len(a.Products) != 0 {
		t.Errorf("other participant modified: %+v", a)
	}

	// EnsureJoined keeps an existing selection.
	order, err = repo.EnsureJoined(ctx, "o", ben)
	if err != nil {
		t.Fatalf("EnsureJoined failed: %v", err)
	}
	if entry, _ := order.Participant(ben.Key); len(entry.Products) != 2 {
		t.Errorf("EnsureJoined reset the selection: %+v", entry)
	}

	if err := repo.WriteSelection(ctx, "missing", ben, nil, 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	repo, store := setupRepository(t)
	ctx := context.Background()

	repo.Create(ctx, "first", ana, false)
	repo.Create(ctx, "second", ben, false)
	if err := store.Create(ctx, "broken", []byte(`{"name":"broken"}`)); err != nil {
		t.Fatalf("failed to seed broken document: %v", err)
	}

	orders, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected the broken order to be skipped, got %d orders", len(orders))
	}

	if _, err := repo.Load(ctx, "broken"); !errors.Is(err, models.ErrNotFound) || !errors.Is(err, models.ErrMalformedRecord) {
		t.Errorf("expected NotFound wrapping MalformedRecord, got %v", err)
	}

	if err := repo.Delete(ctx, "first", ben); !errors.Is(err, models.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for non-creator, got %v", err)
	}
	if err := repo.Delete(ctx, "first", ana); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Load(ctx, "first"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// unionFailingStore refuses array-union writes.
type unionFailingStore struct {
	storage.DocumentStore
}

func (unionFailingStore) ArrayUnion(context.Context, string, map[string][]json.RawMessage) error {
	return errors.New("connection reset")
}

func TestCreateWithFailedJoin(t *testing.T) {
	_, store := setupRepository(t)
	repo := NewRepository(gateway.New(unionFailingStore{store}), record.NewNormalizer(store, nil), nil)
	ctx := context.Background()

	order, err := repo.Create(ctx, "Friday Lunch", ana, true)
	if err != nil {
		t.Fatalf("Create should succeed once the order is stored: %v", err)
	}
	if order.ID != "Friday Lunch" || len(order.Participants) != 0 {
		t.Errorf("unexpected order %+v", order)
	}

	// The creator can still join through the regular path.
	joined, err := repo.EnsureJoined(ctx, "Friday Lunch", ana)
	if err != nil {
		t.Fatalf("EnsureJoined failed: %v", err)
	}
	if _, i := joined.Participant(ana.Key); i < 0 {
		t.Error("expected the creator to be joined")
	}
}
