package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/livesync"
	"github.com/mmynk/grouporder/internal/metrics"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/orders"
	"github.com/mmynk/grouporder/internal/record"
	"github.com/mmynk/grouporder/internal/session"
	"github.com/mmynk/grouporder/pkg/api"
	"github.com/mmynk/grouporder/pkg/api/apiconnect"
)

// openSession is an edit session bound to one OpenOrder stream.
type openSession struct {
	session *session.Session
	cancel  context.CancelFunc
}

// OrderService implements the Connect OrderService
type OrderService struct {
	apiconnect.UnimplementedOrderServiceHandler
	repo       *orders.Repository
	catalog    record.ProductLookup
	controller *livesync.Controller
	metrics    *metrics.Metrics
	logger     *slog.Logger
	debounce   time.Duration
	summary    []calculator.Option

	mu       sync.Mutex
	sessions map[string]*openSession
}

// OrderOption configures an OrderService.
type OrderOption func(*OrderService)

// WithDebounce sets the debounce window of edit sessions.
func WithDebounce(d time.Duration) OrderOption {
	return func(s *OrderService) { s.debounce = d }
}

func WithMetrics(m *metrics.Metrics) OrderOption {
	return func(s *OrderService) { s.metrics = m }
}

func WithLogger(l *slog.Logger) OrderOption {
	return func(s *OrderService) { s.logger = l }
}

// WithSummaryOptions passes options to every summary computed.
func WithSummaryOptions(opts ...calculator.Option) OrderOption {
	return func(s *OrderService) { s.summary = opts }
}

// NewOrderService creates a new OrderService. catalog resolves the
// products named in ToggleProduct.
func NewOrderService(repo *orders.Repository, controller *livesync.Controller, catalog record.ProductLookup, opts ...OrderOption) *OrderService {
	s := &OrderService{
		repo:       repo,
		catalog:    catalog,
		controller: controller,
		logger:     slog.Default(),
		debounce:   session.DefaultDebounce,
		sessions:   make(map[string]*openSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder creates a new, uniquely named order.
func (s *OrderService) CreateOrder(ctx context.Context, req *connect.Request[api.CreateOrderRequest]) (*connect.Response[api.CreateOrderResponse], error) {
	who, err := participant(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CreateOrder request received", "name", req.Msg.Name, "join", req.Msg.Join)

	order, err := s.repo.Create(ctx, req.Msg.Name, who, req.Msg.Join)
	if err != nil {
		s.logger.Error("CreateOrder failed", "name", req.Msg.Name, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CreateOrderResponse{Order: toOrder(order)}), nil
}

// GetOrder returns an order and its summary without joining it.
func (s *OrderService) GetOrder(ctx context.Context, req *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error) {
	if _, err := participant(ctx); err != nil {
		return nil, err
	}

	order, err := s.repo.Load(ctx, req.Msg.OrderId)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.GetOrderResponse{
		Order:   toOrder(order),
		Summary: toSummary(calculator.Summarize(order, s.summary...)),
	}), nil
}

// ListOrders returns every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context, req *connect.Request[api.ListOrdersRequest]) (*connect.Response[api.ListOrdersResponse], error) {
	if _, err := participant(ctx); err != nil {
		return nil, err
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("ListOrders failed", "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.ListOrdersResponse{Orders: make([]*api.Order, 0, len(list))}
	for _, o := range list {
		resp.Orders = append(resp.Orders, toOrder(o))
	}
	return connect.NewResponse(resp), nil
}

// DeleteOrder removes an order. Only its creator may delete it.
func (s *OrderService) DeleteOrder(ctx context.Context, req *connect.Request[api.DeleteOrderRequest]) (*connect.Response[api.DeleteOrderResponse], error) {
	who, err := participant(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("DeleteOrder request received", "order_id", req.Msg.OrderId)

	if err := s.repo.Delete(ctx, req.Msg.OrderId, who); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.DeleteOrderResponse{}), nil
}

// OpenOrder joins the order and streams its state until the caller leaves,
// disconnects, or the order is deleted.
func (s *OrderService) OpenOrder(ctx context.Context, req *connect.Request[api.OpenOrderRequest], stream *connect.ServerStream[api.OrderEvent]) error {
	who, err := participant(ctx)
	if err != nil {
		return err
	}
	orderID := req.Msg.OrderId
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fatal := make(chan error, 1)
	sess := session.New(orderID, who, s.repo,
		session.WithDebounce(s.debounce),
		session.WithMetrics(s.metrics),
		session.WithLogger(s.logger),
		session.WithOnError(func(err error) {
			select {
			case fatal <- err:
			default:
			}
		}),
	)
	defer sess.Close()

	order, err := sess.Open(ctx)
	if err != nil {
		return toConnectError(err)
	}

	sessionID := uuid.NewString()
	s.mu.Lock()
	s.sessions[sessionID] = &openSession{session: sess, cancel: cancel}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	}()
	s.logger.Info("Order opened", "order_id", orderID, "identity", who.Key, "session_id", sessionID)

	if err := stream.Send(&api.OrderEvent{
		SessionId: sessionID,
		Order:     toOrder(order),
		Selection: toRefs(sess.Selection()),
		Summary:   toSummary(calculator.Summarize(order, s.summary...)),
	}); err != nil {
		return err
	}

	// Keep only the latest view; the stream may be slower than the feed.
	updates := make(chan livesync.View, 1)
	gone := make(chan struct{})
	detach, err := s.controller.Attach(ctx, orderID, sess, livesync.Handlers{
		OnUpdate: func(v livesync.View) {
			select {
			case <-updates:
			default:
			}
			updates <- v
		},
		OnGone: func() { close(gone) },
	})
	if err != nil {
		return toConnectError(err)
	}
	defer detach()

	for {
		select {
		case <-ctx.Done():
			// The client went away without leaving; keep its last edit.
			flushCtx, cancelFlush := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancelFlush()
			if err := sess.Flush(flushCtx); err != nil && !errors.Is(err, session.ErrClosed) {
				s.logger.Warn("Unwritten edit dropped on disconnect", "session_id", sessionID, "error", err)
			}
			return nil
		case <-gone:
			return stream.Send(&api.OrderEvent{SessionId: sessionID, Gone: true})
		case err := <-fatal:
			return toConnectError(err)
		case v := <-updates:
			if err := stream.Send(&api.OrderEvent{
				SessionId: sessionID,
				Order:     toOrder(v.Order),
				Selection: toRefs(v.Selection),
				Summary:   toSummary(v.Summary),
			}); err != nil {
				return err
			}
		}
	}
}

func (s *OrderService) lookup(ctx context.Context, sessionID string) (*openSession, error) {
	who, err := participant(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	open, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, errUnknownSession)
	}
	if open.session.Identity().Key != who.Key {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("session belongs to another participant"))
	}
	return open, nil
}

// ToggleProduct adds or removes a catalog product from the caller's
// selection. The change is written after the debounce window.
func (s *OrderService) ToggleProduct(ctx context.Context, req *connect.Request[api.ToggleProductRequest]) (*connect.Response[api.ToggleProductResponse], error) {
	open, err := s.lookup(ctx, req.Msg.SessionId)
	if err != nil {
		return nil, err
	}

	products, err := s.catalog.ListByIDs(ctx, []string{req.Msg.ProductId})
	if err != nil {
		return nil, toConnectError(err)
	}
	if len(products) == 0 {
		return nil, connect.NewError(connect.CodeNotFound, models.ErrNotFound)
	}

	selection, err := open.session.Toggle(products[0].Ref())
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ToggleProductResponse{Selection: toRefs(selection)}), nil
}

// LeaveOrder writes any pending edit and ends the session's stream. If the
// write fails the session stays open so the call can be retried.
func (s *OrderService) LeaveOrder(ctx context.Context, req *connect.Request[api.LeaveOrderRequest]) (*connect.Response[api.LeaveOrderResponse], error) {
	open, err := s.lookup(ctx, req.Msg.SessionId)
	if err != nil {
		return nil, err
	}

	if err := open.session.Flush(ctx); err != nil {
		s.logger.Error("LeaveOrder flush failed", "session_id", req.Msg.SessionId, "error", err)
		return nil, toConnectError(err)
	}
	open.session.Close()
	open.cancel()

	s.mu.Lock()
	delete(s.sessions, req.Msg.SessionId)
	s.mu.Unlock()
	return connect.NewResponse(&api.LeaveOrderResponse{}), nil
}

// Shutdown closes every open session. Pending edits are flushed first.
func (s *OrderService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	open := make([]*openSession, 0, len(s.sessions))
	for _, o := range s.sessions {
		open = append(open, o)
	}
	s.mu.Unlock()

	for _, o := range open {
		if err := o.session.Flush(ctx); err != nil {
			s.logger.Warn("Dropping unwritten edit on shutdown",
				"order_id", o.session.OrderID(),
				"identity", o.session.Identity().Key,
				"error", err,
			)
		}
		o.session.Close()
		o.cancel()
	}
}
