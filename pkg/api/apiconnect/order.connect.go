// Package apiconnect binds the grouporder services to Connect handlers and
// clients.
package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/grouporder/pkg/api"
)

const (
	// OrderServiceName is the fully-qualified name of the OrderService service.
	OrderServiceName = "grouporder.v1.OrderService"
)

// Procedure paths of OrderService.
const (
	OrderServiceCreateOrderProcedure   = "/grouporder.v1.OrderService/CreateOrder"
	OrderServiceGetOrderProcedure      = "/grouporder.v1.OrderService/GetOrder"
	OrderServiceListOrdersProcedure    = "/grouporder.v1.OrderService/ListOrders"
	OrderServiceDeleteOrderProcedure   = "/grouporder.v1.OrderService/DeleteOrder"
	OrderServiceOpenOrderProcedure     = "/grouporder.v1.OrderService/OpenOrder"
	OrderServiceToggleProductProcedure = "/grouporder.v1.OrderService/ToggleProduct"
	OrderServiceLeaveOrderProcedure    = "/grouporder.v1.OrderService/LeaveOrder"
)

// OrderServiceClient is a client for the grouporder.v1.OrderService service.
type OrderServiceClient interface {
	CreateOrder(context.Context, *connect.Request[api.CreateOrderRequest]) (*connect.Response[api.CreateOrderResponse], error)
	GetOrder(context.Context, *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error)
	ListOrders(context.Context, *connect.Request[api.ListOrdersRequest]) (*connect.Response[api.ListOrdersResponse], error)
	DeleteOrder(context.Context, *connect.Request[api.DeleteOrderRequest]) (*connect.Response[api.DeleteOrderResponse], error)
	OpenOrder(context.Context, *connect.Request[api.OpenOrderRequest]) (*connect.ServerStreamForClient[api.OrderEvent], error)
	ToggleProduct(context.Context, *connect.Request[api.ToggleProductRequest]) (*connect.Response[api.ToggleProductResponse], error)
	LeaveOrder(context.Context, *connect.Request[api.LeaveOrderRequest]) (*connect.Response[api.LeaveOrderResponse], error)
}

// NewOrderServiceClient constructs a client for the grouporder.v1.OrderService
// service. The JSON codec is always used.
func NewOrderServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) OrderServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec{})}, opts...)
	return &orderServiceClient{
		createOrder:   connect.NewClient[api.CreateOrderRequest, api.CreateOrderResponse](httpClient, baseURL+OrderServiceCreateOrderProcedure, opts...),
		getOrder:      connect.NewClient[api.GetOrderRequest, api.GetOrderResponse](httpClient, baseURL+OrderServiceGetOrderProcedure, opts...),
		listOrders:    connect.NewClient[api.ListOrdersRequest, api.ListOrdersResponse](httpClient, baseURL+OrderServiceListOrdersProcedure, opts...),
		deleteOrder:   connect.NewClient[api.DeleteOrderRequest, api.DeleteOrderResponse](httpClient, baseURL+OrderServiceDeleteOrderProcedure, opts...),
		openOrder:     connect.NewClient[api.OpenOrderRequest, api.OrderEvent](httpClient, baseURL+OrderServiceOpenOrderProcedure, opts...),
		toggleProduct: connect.NewClient[api.ToggleProductRequest, api.ToggleProductResponse](httpClient, baseURL+OrderServiceToggleProductProcedure, opts...),
		leaveOrder:    connect.NewClient[api.LeaveOrderRequest, api.LeaveOrderResponse](httpClient, baseURL+OrderServiceLeaveOrderProcedure, opts...),
	}
}

type orderServiceClient struct {
	createOrder   *connect.Client[api.CreateOrderRequest, api.CreateOrderResponse]
	getOrder      *connect.Client[api.GetOrderRequest, api.GetOrderResponse]
	listOrders    *connect.Client[api.ListOrdersRequest, api.ListOrdersResponse]
	deleteOrder   *connect.Client[api.DeleteOrderRequest, api.DeleteOrderResponse]
	openOrder     *connect.Client[api.OpenOrderRequest, api.OrderEvent]
	toggleProduct *connect.Client[api.ToggleProductRequest, api.ToggleProductResponse]
	leaveOrder    *connect.Client[api.LeaveOrderRequest, api.LeaveOrderResponse]
}

func (c *orderServiceClient) CreateOrder(ctx context.Context, req *connect.Request[api.CreateOrderRequest]) (*connect.Response[api.CreateOrderResponse], error) {
	return c.createOrder.CallUnary(ctx, req)
}

func (c *orderServiceClient) GetOrder(ctx context.Context, req *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error) {
	return c.getOrder.CallUnary(ctx, req)
}

func (c *orderServiceClient) ListOrders(ctx context.Context, req *connect.Request[api.ListOrdersRequest]) (*connect.Response[api.ListOrdersResponse], error) {
	return c.listOrders.CallUnary(ctx, req)
}

func (c *orderServiceClient) DeleteOrder(ctx context.Context, req *connect.Request[api.DeleteOrderRequest]) (*connect.Response[api.DeleteOrderResponse], error) {
	return c.deleteOrder.CallUnary(ctx, req)
}

func (c *orderServiceClient) OpenOrder(ctx context.Context, req *connect.Request[api.OpenOrderRequest]) (*connect.ServerStreamForClient[api.OrderEvent], error) {
	return c.openOrder.CallServerStream(ctx, req)
}

func (c *orderServiceClient) ToggleProduct(ctx context.Context, req *connect.Request[api.ToggleProductRequest]) (*connect.Response[api.ToggleProductResponse], error) {
	return c.toggleProduct.CallUnary(ctx, req)
}

func (c *orderServiceClient) LeaveOrder(ctx context.Context, req *connect.Request[api.LeaveOrderRequest]) (*connect.Response[api.LeaveOrderResponse], error) {
	return c.leaveOrder.CallUnary(ctx, req)
}

// OrderServiceHandler is an implementation of the grouporder.v1.OrderService service.
type OrderServiceHandler interface {
	CreateOrder(context.Context, *connect.Request[api.CreateOrderRequest]) (*connect.Response[api.CreateOrderResponse], error)
	GetOrder(context.Context, *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error)
	ListOrders(context.Context, *connect.Request[api.ListOrdersRequest]) (*connect.Response[api.ListOrdersResponse], error)
	DeleteOrder(context.Context, *connect.Request[api.DeleteOrderRequest]) (*connect.Response[api.DeleteOrderResponse], error)
	OpenOrder(context.Context, *connect.Request[api.OpenOrderRequest], *connect.ServerStream[api.OrderEvent]) error
	ToggleProduct(context.Context, *connect.Request[api.ToggleProductRequest]) (*connect.Response[api.ToggleProductResponse], error)
	LeaveOrder(context.Context, *connect.Request[api.LeaveOrderRequest]) (*connect.Response[api.LeaveOrderResponse], error)
}

// NewOrderServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and
// the handler itself.
func NewOrderServiceHandler(svc OrderServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)
	createOrder := connect.NewUnaryHandler(OrderServiceCreateOrderProcedure, svc.CreateOrder, opts...)
	getOrder := connect.NewUnaryHandler(OrderServiceGetOrderProcedure, svc.GetOrder, opts...)
	listOrders := connect.NewUnaryHandler(OrderServiceListOrdersProcedure, svc.ListOrders, opts...)
	deleteOrder := connect.NewUnaryHandler(OrderServiceDeleteOrderProcedure, svc.DeleteOrder, opts...)
	openOrder := connect.NewServerStreamHandler(OrderServiceOpenOrderProcedure, svc.OpenOrder, opts...)
	toggleProduct := connect.NewUnaryHandler(OrderServiceToggleProductProcedure, svc.ToggleProduct, opts...)
	leaveOrder := connect.NewUnaryHandler(OrderServiceLeaveOrderProcedure, svc.LeaveOrder, opts...)

	return "/grouporder.v1.OrderService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case OrderServiceCreateOrderProcedure:
			createOrder.ServeHTTP(w, r)
		case OrderServiceGetOrderProcedure:
			getOrder.ServeHTTP(w, r)
		case OrderServiceListOrdersProcedure:
			listOrders.ServeHTTP(w, r)
		case OrderServiceDeleteOrderProcedure:
			deleteOrder.ServeHTTP(w, r)
		case OrderServiceOpenOrderProcedure:
			openOrder.ServeHTTP(w, r)
		case OrderServiceToggleProductProcedure:
			toggleProduct.ServeHTTP(w, r)
		case OrderServiceLeaveOrderProcedure:
			leaveOrder.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedOrderServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedOrderServiceHandler struct{}

func (UnimplementedOrderServiceHandler) CreateOrder(context.Context, *connect.Request[api.CreateOrderRequest]) (*connect.Response[api.CreateOrderResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.OrderService.CreateOrder is not implemented"))
}

func (UnimplementedOrderServiceHandler) GetOrder(context.Context, *connect.Request[api.GetOrderRequest]) (*connect.Response[api.GetOrderResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.OrderService.GetOrder is not implemented"))
}

func (UnimplementedOrderServiceHandler) ListOrders(context.Context, *connect.Request[api.ListOrdersRequest]) (*connect.Response[api.ListOrdersResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.OrderService.ListOrders is not implemented"))
}

func (UnimplementedOrderServiceHandler) DeleteOrder(context.Context, *connect.Request[api.DeleteOrderRequest]) (*connect.Response[api.DeleteOrderResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.OrderService.DeleteOrder is not implemented"))
}

func (UnimplementedOrderServiceHandler) OpenOrder(context.Context, *connect.Request[api.OpenOrderRequest], *connect.ServerStream[api.OrderEvent]) error {
	return connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.OrderService.OpenOrder is not implemented"))
}

func (UnimplementedOrderServiceHandler) ToggleProduct(context.Context, *connect.Request[api.ToggleProductRequest]) (*connect.Response[api.ToggleProductResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.OrderService.ToggleProduct is not implemented"))
}

func (UnimplementedOrderServiceHandler) LeaveOrder(context.Context, *connect.Request[api.LeaveOrderRequest]) (*connect.Response[api.LeaveOrderResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.OrderService.LeaveOrder is not implemented"))
}
