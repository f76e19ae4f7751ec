package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"connectrpc.com/connect"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mmynk/grouporder/internal/calculator"
	"github.com/mmynk/grouporder/internal/models"
	"github.com/mmynk/grouporder/internal/storage"
	"github.com/mmynk/grouporder/pkg/api"
	"github.com/mmynk/grouporder/pkg/api/apiconnect"
)

// CatalogService implements the Connect CatalogService
type CatalogService struct {
	apiconnect.UnimplementedCatalogServiceHandler
	catalog storage.Catalog
	locale  language.Tag
	logger  *slog.Logger
}

// NewCatalogService creates a new CatalogService. Product names are sorted
// under locale's collation.
func NewCatalogService(catalog storage.Catalog, locale language.Tag, logger *slog.Logger) *CatalogService {
	if locale == language.Und {
		locale = calculator.DefaultLocale
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{catalog: catalog, locale: locale, logger: logger}
}

// ListProducts lists the catalog, optionally one category or only the
// caller's favorites, with favorites marked.
func (s *CatalogService) ListProducts(ctx context.Context, req *connect.Request[api.ListProductsRequest]) (*connect.Response[api.ListProductsResponse], error) {
	who, err := participant(ctx)
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if req.Msg.Category != "" {
		category := models.ParseCategory(req.Msg.Category)
		if !category.Known() {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown category %q", req.Msg.Category))
		}
		products, err = s.catalog.ListByCategory(ctx, category)
	} else {
		products, err = s.catalog.ListAll(ctx)
	}
	if err != nil {
		s.logger.Error("ListProducts failed", "category", req.Msg.Category, "error", err)
		return nil, toConnectError(err)
	}

	favorites, err := s.catalog.Favorites(ctx, who.Key)
	if err != nil {
		return nil, toConnectError(err)
	}
	marked := make(map[string]bool, len(favorites))
	for _, id := range favorites {
		marked[id] = true
	}

	col := collate.New(s.locale)
	sort.SliceStable(products, func(i, j int) bool {
		return col.CompareString(products[i].Name, products[j].Name) < 0
	})

	resp := &api.ListProductsResponse{Products: make([]*api.Product, 0, len(products))}
	for _, p := range products {
		p.Favorite = marked[p.ID]
		if req.Msg.FavoritesOnly && !p.Favorite {
			continue
		}
		resp.Products = append(resp.Products, toProduct(p))
	}
	return connect.NewResponse(resp), nil
}

// ToggleFavorite flips the caller's favorite mark on a product.
func (s *CatalogService) ToggleFavorite(ctx context.Context, req *connect.Request[api.ToggleFavoriteRequest]) (*connect.Response[api.ToggleFavoriteResponse], error) {
	who, err := participant(ctx)
	if err != nil {
		return nil, err
	}

	favorite, err := s.catalog.ToggleFavorite(ctx, who.Key, req.Msg.ProductId)
	if err != nil {
		return nil, toConnectError(err)
	}
	s.logger.Info("Favorite toggled", "identity", who.Key, "product_id", req.Msg.ProductId, "favorite", favorite)
	return connect.NewResponse(&api.ToggleFavoriteResponse{Favorite: favorite}), nil
}
