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
	// CatalogServiceName is the fully-qualified name of the CatalogService service.
	CatalogServiceName = "grouporder.v1.CatalogService"
)

// Procedure paths of CatalogService.
const (
	CatalogServiceListProductsProcedure   = "/grouporder.v1.CatalogService/ListProducts"
	CatalogServiceToggleFavoriteProcedure = "/grouporder.v1.CatalogService/ToggleFavorite"
)

// CatalogServiceClient is a client for the grouporder.v1.CatalogService service.
type CatalogServiceClient interface {
	ListProducts(context.Context, *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error)
	ToggleFavorite(context.Context, *connect.Request[api.ToggleFavoriteRequest]) (*connect.Response[api.ToggleFavoriteResponse], error)
}

// NewCatalogServiceClient constructs a client for the
// grouporder.v1.CatalogService service.
func NewCatalogServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) CatalogServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.Codec{})}, opts...)
	return &catalogServiceClient{
		listProducts:   connect.NewClient[api.ListProductsRequest, api.ListProductsResponse](httpClient, baseURL+CatalogServiceListProductsProcedure, opts...),
		toggleFavorite: connect.NewClient[api.ToggleFavoriteRequest, api.ToggleFavoriteResponse](httpClient, baseURL+CatalogServiceToggleFavoriteProcedure, opts...),
	}
}

type catalogServiceClient struct {
	listProducts   *connect.Client[api.ListProductsRequest, api.ListProductsResponse]
	toggleFavorite *connect.Client[api.ToggleFavoriteRequest, api.ToggleFavoriteResponse]
}

func (c *catalogServiceClient) ListProducts(ctx context.Context, req *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error) {
	return c.listProducts.CallUnary(ctx, req)
}

func (c *catalogServiceClient) ToggleFavorite(ctx context.Context, req *connect.Request[api.ToggleFavoriteRequest]) (*connect.Response[api.ToggleFavoriteResponse], error) {
	return c.toggleFavorite.CallUnary(ctx, req)
}

// CatalogServiceHandler is an implementation of the grouporder.v1.CatalogService service.
type CatalogServiceHandler interface {
	ListProducts(context.Context, *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error)
	ToggleFavorite(context.Context, *connect.Request[api.ToggleFavoriteRequest]) (*connect.Response[api.ToggleFavoriteResponse], error)
}

// NewCatalogServiceHandler builds an HTTP handler from the service
// implementation.
func NewCatalogServiceHandler(svc CatalogServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)
	listProducts := connect.NewUnaryHandler(CatalogServiceListProductsProcedure, svc.ListProducts, opts...)
	toggleFavorite := connect.NewUnaryHandler(CatalogServiceToggleFavoriteProcedure, svc.ToggleFavorite, opts...)

	return "/grouporder.v1.CatalogService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case CatalogServiceListProductsProcedure:
			listProducts.ServeHTTP(w, r)
		case CatalogServiceToggleFavoriteProcedure:
			toggleFavorite.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedCatalogServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedCatalogServiceHandler struct{}

func (UnimplementedCatalogServiceHandler) ListProducts(context.Context, *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.CatalogService.ListProducts is not implemented"))
}

func (UnimplementedCatalogServiceHandler) ToggleFavorite(context.Context, *connect.Request[api.ToggleFavoriteRequest]) (*connect.Response[api.ToggleFavoriteResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("grouporder.v1.CatalogService.ToggleFavorite is not implemented"))
}
