package service

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/glowmart/cart-session/internal/gateway"
	"github.com/glowmart/cart-session/internal/metrics"
	"github.com/glowmart/cart-session/internal/models"
	"golang.org/x/sync/errgroup"
)

// StockResolver attaches a stock ceiling to each cart line from catalog
// detail records. Product fetches fan out concurrently; carts routinely hold
// 5-20 distinct products and a sequential walk would multiply latency.
type StockResolver struct {
	catalog       gateway.CatalogGateway
	maxConcurrent int
	logger        *slog.Logger
}

func NewStockResolver(catalog gateway.CatalogGateway, maxConcurrent int, logger *slog.Logger) *StockResolver {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &StockResolver{
		catalog:       catalog,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Enrich resolves ceilings in place and returns the same slice. A failed
// product fetch leaves the dependent lines' ceilings unknown (nil) and never
// fails the other lines; nil means "not yet validated", not "unlimited".
func (r *StockResolver) Enrich(ctx context.Context, lines []models.CartLine) []models.CartLine {

	if len(lines) == 0 {
		return lines
	}

	// A product can appear under several variants; fetch it once.
	distinct := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))

	for i := range lines {
		if _, ok := seen[lines[i].ProductID]; ok {
			continue
		}

		seen[lines[i].ProductID] = struct{}{}
		distinct = append(distinct, lines[i].ProductID)
	}

	products := make([]*models.Product, len(distinct))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)

	for idx, productID := range distinct {
		g.Go(func() error {
			product, err := r.catalog.GetProductByID(gctx, productID)
			if err != nil {
				r.logger.Warn("Stock lookup failed, leaving ceiling unknown",
					slog.String("product_id", productID),
					slog.String("error", err.Error()))

				return nil
			}

			products[idx] = product

			return nil
		})
	}

	_ = g.Wait()

	byID := make(map[string]*models.Product, len(distinct))
	for idx, productID := range distinct {
		byID[productID] = products[idx]
	}

	for i := range lines {
		lines[i].StockCeiling = ceilingFor(&lines[i], byID[lines[i].ProductID])

		if lines[i].StockCeiling == nil {
			metrics.StockCeilingMisses.Inc()
		}
	}

	return lines
}

func ceilingFor(line *models.CartLine, product *models.Product) *int64 {

	if product == nil {
		return nil
	}

	if strings.TrimSpace(line.VariantCode) != "" {
		return variantCeiling(line.VariantCode, product.Variants)
	}

	// A data-mapping miss degrades to "unknown", never to zero; a malformed
	// stock figure must not falsely block purchase.
	if product.StockQuantity == nil {
		return nil
	}

	stock := *product.StockQuantity
	if stock < 0 || math.IsNaN(stock) || math.IsInf(stock, 0) {
		return nil
	}

	ceiling := int64(stock)

	return &ceiling
}

func variantCeiling(code string, variants []models.Variant) *int64 {

	want := strings.ToLower(strings.TrimSpace(code))

	for i := range variants {
		if strings.ToLower(strings.TrimSpace(variants[i].Code)) == want {
			ceiling := variants[i].StockQuantity

			return &ceiling
		}
	}

	return nil
}
