package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/text/language"

	"github.com/mmynk/grouporder/internal/auth"
	"github.com/mmynk/grouporder/internal/gateway"
	"github.com/mmynk/grouporder/internal/livesync"
	"github.com/mmynk/grouporder/internal/middleware"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/orders"
	"github.com/mmynk/grouporder/internal/record"
	"github.com/mmynk/grouporder/internal/storage/sqlite"
	"github.com/mmynk/grouporder/pkg/api"
	"github.com/mmynk/grouporder/pkg/api/apiconnect"
)

var (
	ana = models.Identity{Key: "ana@example.com", DisplayName: "Ana"}
	ben = models.Identity{Key: "ben@example.com", DisplayName: "Ben"}
)

type clients struct {
	orders  apiconnect.OrderServiceClient
	catalog apiconnect.CatalogServiceClient
}

type testServer struct {
	url  string
	jwt  *auth.JWTManager
	svc  *OrderService
	repo *orders.Repository
}

// setupTestServer creates a test server with OrderService and CatalogService
// behind the auth and logging interceptors.
func setupTestServer(t *testing.T, debounce time.Duration) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, p := range []models.Product{
		{ID: "p1", Name: "Tortilla", Category: models.CategoryFood},
		{ID: "p2", Name: "Caña", Category: models.CategoryDrink},
		{ID: "p3", Name: "Ñoquis", Category: models.CategoryFood},
		{ID: "p4", Name: "Olivas", Category: models.CategoryFood},
	} {
		if err := store.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("failed to seed product: %v", err)
		}
	}

	gw := gateway.New(store)
	normalizer := record.NewNormalizer(store, nil)
	repo := orders.NewRepository(gw, normalizer, nil)
	orderSvc := NewOrderService(repo, livesync.NewController(gw, normalizer), store, WithDebounce(debounce))
	catalogSvc := NewCatalogService(store, language.Spanish, nil)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	interceptors := connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor())

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewOrderServiceHandler(orderSvc, interceptors))
	mux.Handle(apiconnect.NewCatalogServiceHandler(catalogSvc, interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	t.Cleanup(func() { orderSvc.Shutdown(context.Background()) })

	return &testServer{url: server.URL, jwt: jwtManager, svc: orderSvc, repo: repo}
}

func (s *testServer) clientFor(t *testing.T, who models.Identity) clients {
	t.Helper()
	token, err := s.jwt.Generate(who)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	opt := connect.WithInterceptors(middleware.BearerToken(token))
	return clients{
		orders:  apiconnect.NewOrderServiceClient(http.DefaultClient, s.url, opt),
		catalog: apiconnect.NewCatalogServiceClient(http.DefaultClient, s.url, opt),
	}
}

func collect(stream *connect.ServerStreamForClient[api.OrderEvent]) <-chan *api.OrderEvent {
	events := make(chan *api.OrderEvent, 64)
	go func() {
		defer close(events)
		for stream.Receive() {
			events <- stream.Msg()
		}
	}()
	return events
}

func waitFor(t *testing.T, events <-chan *api.OrderEvent, match func(*api.OrderEvent) bool) *api.OrderEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("stream ended before the expected event")
			}
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func waitClosed(t *testing.T, events <-chan *api.OrderEvent) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the stream to end")
		}
	}
}

func entryOf(o *api.Order, identity string) *api.Participant {
	if o == nil {
		return nil
	}
	for _, p := range o.Participants {
		if p.Identity == identity {
			return p
		}
	}
	return nil
}

func code(err error) connect.Code {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Code()
	}
	return connect.CodeUnknown
}

func TestSharedOrderFlow(t *testing.T) {
	srv := setupTestServer(t, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	anaClient, benClient := srv.clientFor(t, ana), srv.clientFor(t, ben)

	created, err := anaClient.orders.CreateOrder(ctx, connect.NewRequest(&api.CreateOrderRequest{Name: "Friday Lunch", Join: true}))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if created.Msg.Order.CreatedBy != ana.Key || len(created.Msg.Order.Participants) != 1 {
		t.Errorf("unexpected order %+v", created.Msg.Order)
	}

	stream, err := benClient.orders.OpenOrder(ctx, connect.NewRequest(&api.OpenOrderRequest{OrderId: "Friday Lunch"}))
	if err != nil {
		t.Fatalf("OpenOrder failed: %v", err)
	}
	events := collect(stream)

	first := waitFor(t, events, func(*api.OrderEvent) bool { return true })
	if first.SessionId == "" {
		t.Fatal("expected a session ID on the first event")
	}
	if entryOf(first.Order, ben.Key) == nil {
		t.Errorf("opening should join the order: %+v", first.Order)
	}

	for _, id := range []string{"p1", "p2"} {
		resp, err := benClient.orders.ToggleProduct(ctx, connect.NewRequest(&api.ToggleProductRequest{
			SessionId: first.SessionId,
			ProductId: id,
		}))
		if err != nil {
			t.Fatalf("ToggleProduct failed: %v", err)
		}
		if resp.Msg.Selection[len(resp.Msg.Selection)-1].Id != id {
			t.Errorf("optimistic selection missing %s: %+v", id, resp.Msg.Selection)
		}
	}

	written := waitFor(t, events, func(e *api.OrderEvent) bool {
		entry := entryOf(e.Order, ben.Key)
		return entry != nil && len(entry.Products) == 2
	})
	if written.Summary.Total != 2 {
		t.Errorf("summary total = %d, want 2", written.Summary.Total)
	}
	if entry := entryOf(written.Order, ben.Key); entry.Version < 1 {
		t.Errorf("expected a versioned entry, got %+v", entry)
	}

	got, err := anaClient.orders.GetOrder(ctx, connect.NewRequest(&api.GetOrderRequest{OrderId: "Friday Lunch"}))
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	lines := got.Msg.Summary.Lines
	if len(lines) != 2 || lines[0].Name != "Tortilla" || lines[1].Name != "Caña" {
		t.Errorf("expected food before drink, got %+v", lines)
	}
	if lines[0].Contributors[0] != "Ben" {
		t.Errorf("contributors = %v", lines[0].Contributors)
	}

	// Only the creator may delete; the open stream then ends with Gone.
	_, err = benClient.orders.DeleteOrder(ctx, connect.NewRequest(&api.DeleteOrderRequest{OrderId: "Friday Lunch"}))
	if code(err) != connect.CodePermissionDenied {
		t.Errorf("expected PermissionDenied, got %v", err)
	}
	if _, err := anaClient.orders.DeleteOrder(ctx, connect.NewRequest(&api.DeleteOrderRequest{OrderId: "Friday Lunch"})); err != nil {
		t.Fatalf("DeleteOrder failed: %v", err)
	}
	waitFor(t, events, func(e *api.OrderEvent) bool { return e.Gone })
	waitClosed(t, events)
}

func TestLeaveOrderFlushes(t *testing.T) {
	srv := setupTestServer(t, time.Hour)
	ctx := context.Background()
	anaClient := srv.clientFor(t, ana)

	if _, err := anaClient.orders.CreateOrder(ctx, connect.NewRequest(&api.CreateOrderRequest{Name: "Team Dinner"})); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	stream, err := anaClient.orders.OpenOrder(ctx, connect.NewRequest(&api.OpenOrderRequest{OrderId: "Team Dinner"}))
	if err != nil {
		t.Fatalf("OpenOrder failed: %v", err)
	}
	events := collect(stream)
	first := waitFor(t, events, func(*api.OrderEvent) bool { return true })

	if _, err := anaClient.orders.ToggleProduct(ctx, connect.NewRequest(&api.ToggleProductRequest{
		SessionId: first.SessionId, ProductId: "p3",
	})); err != nil {
		t.Fatalf("ToggleProduct failed: %v", err)
	}
	if _, err := anaClient.orders.LeaveOrder(ctx, connect.NewRequest(&api.LeaveOrderRequest{SessionId: first.SessionId})); err != nil {
		t.Fatalf("LeaveOrder failed: %v", err)
	}
	waitClosed(t, events)

	order, err := srv.repo.Load(ctx, "Team Dinner")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if entry, _ := order.Participant(ana.Key); len(entry.Products) != 1 {
		t.Errorf("expected the pending edit to be written on leave, got %+v", entry)
	}

	_, err = anaClient.orders.ToggleProduct(ctx, connect.NewRequest(&api.ToggleProductRequest{
		SessionId: first.SessionId, ProductId: "p1",
	}))
	if code(err) != connect.CodeNotFound {
		t.Errorf("expected NotFound for a left session, got %v", err)
	}
}

func TestOrderServiceErrors(t *testing.T) {
	srv := setupTestServer(t, 20*time.Millisecond)
	ctx := context.Background()
	anaClient, benClient := srv.clientFor(t, ana), srv.clientFor(t, ben)

	if _, err := anaClient.orders.CreateOrder(ctx, connect.NewRequest(&api.CreateOrderRequest{Name: "Friday Lunch"})); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	stream, err := anaClient.orders.OpenOrder(ctx, connect.NewRequest(&api.OpenOrderRequest{OrderId: "Friday Lunch"}))
	if err != nil {
		t.Fatalf("OpenOrder failed: %v", err)
	}
	events := collect(stream)
	sessionID := waitFor(t, events, func(*api.OrderEvent) bool { return true }).SessionId

	anonymous := apiconnect.NewOrderServiceClient(http.DefaultClient, srv.url)

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{
			name: "missing token",
			call: func() error {
				_, err := anonymous.ListOrders(ctx, connect.NewRequest(&api.ListOrdersRequest{}))
				return err
			},
			want: connect.CodeUnauthenticated,
		},
		{
			name: "duplicate name",
			call: func() error {
				_, err := benClient.orders.CreateOrder(ctx, connect.NewRequest(&api.CreateOrderRequest{Name: "Friday Lunch"}))
				return err
			},
			want: connect.CodeAlreadyExists,
		},
		{
			name: "blank name",
			call: func() error {
				_, err := benClient.orders.CreateOrder(ctx, connect.NewRequest(&api.CreateOrderRequest{Name: " "}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "missing order",
			call: func() error {
				_, err := anaClient.orders.GetOrder(ctx, connect.NewRequest(&api.GetOrderRequest{OrderId: "nope"}))
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "open missing order",
			call: func() error {
				s, err := anaClient.orders.OpenOrder(ctx, connect.NewRequest(&api.OpenOrderRequest{OrderId: "nope"}))
				if err != nil {
					return err
				}
				for s.Receive() {
				}
				return s.Err()
			},
			want: connect.CodeNotFound,
		},
		{
			name: "unknown session",
			call: func() error {
				_, err := anaClient.orders.ToggleProduct(ctx, connect.NewRequest(&api.ToggleProductRequest{SessionId: "nope", ProductId: "p1"}))
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "another participant's session",
			call: func() error {
				_, err := benClient.orders.ToggleProduct(ctx, connect.NewRequest(&api.ToggleProductRequest{SessionId: sessionID, ProductId: "p1"}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "unknown product",
			call: func() error {
				_, err := anaClient.orders.ToggleProduct(ctx, connect.NewRequest(&api.ToggleProductRequest{SessionId: sessionID, ProductId: "gone"}))
				return err
			},
			want: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := code(tt.call()); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}

	list, err := benClient.orders.ListOrders(ctx, connect.NewRequest(&api.ListOrdersRequest{}))
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(list.Msg.Orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(list.Msg.Orders))
	}
}
