package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/glowmart/cart-session/internal/cache"
	"github.com/glowmart/cart-session/internal/models"
)

// CatalogGateway resolves product detail records, consulted for per-variant
// stock figures. Reads are cached; stock ceilings tolerate slight staleness
// because the upstream cart re-validates quantities on checkout anyway.
type CatalogGateway interface {
	GetProductByID(ctx context.Context, productID string) (*models.Product, error)
}

type catalogGateway struct {
	client *Client
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCatalogGateway(client *Client, productCache cache.Cache, ttl time.Duration, logger *slog.Logger) CatalogGateway {
	if logger == nil {
		logger = slog.Default()
	}

	return &catalogGateway{
		client: client,
		cache:  productCache,
		ttl:    ttl,
		logger: logger,
	}
}

func (g *catalogGateway) GetProductByID(ctx context.Context, productID string) (*models.Product, error) {

	key := cache.Key(cache.ProductKeyPrefix, productID)

	var product models.Product

	if g.cache != nil {
		found, err := g.cache.Get(ctx, key, &product)
		if err != nil {
			g.logger.Warn("Product cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		} else if found {
			return &product, nil
		}
	}

	if err := g.client.do(ctx, "get_product", http.MethodGet, "/api/v1/products/"+productID, "", nil, &product); err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, &product, g.ttl); err != nil {
			g.logger.Warn("Product cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	return &product, nil
}
