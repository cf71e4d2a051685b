package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/glowmart/cart-session/internal/cache"
	"github.com/glowmart/cart-session/internal/models"
)

// VoucherGateway serves the active voucher catalog used for suggestions.
type VoucherGateway interface {
	GetActiveVouchers(ctx context.Context) ([]models.VoucherSuggestion, error)
}

type voucherGateway struct {
	client *Client
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewVoucherGateway(client *Client, voucherCache cache.Cache, ttl time.Duration, logger *slog.Logger) VoucherGateway {
	if logger == nil {
		logger = slog.Default()
	}

	return &voucherGateway{
		client: client,
		cache:  voucherCache,
		ttl:    ttl,
		logger: logger,
	}
}

func (g *voucherGateway) GetActiveVouchers(ctx context.Context) ([]models.VoucherSuggestion, error) {

	var vouchers []models.VoucherSuggestion

	if g.cache != nil {
		found, err := g.cache.Get(ctx, cache.VoucherCatalogKey, &vouchers)
		if err != nil {
			g.logger.Warn("Voucher cache read failed", slog.String("error", err.Error()))
		} else if found {
			return vouchers, nil
		}
	}

	if err := g.client.do(ctx, "get_vouchers", http.MethodGet, "/api/v1/vouchers/active", "", nil, &vouchers); err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, cache.VoucherCatalogKey, vouchers, g.ttl); err != nil {
			g.logger.Warn("Voucher cache write failed", slog.String("error", err.Error()))
		}
	}

	return vouchers, nil
}
