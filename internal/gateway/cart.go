package gateway

import (
	"context"
	"net/http"

	"github.com/glowmart/cart-session/internal/errors"
	"github.com/glowmart/cart-session/internal/models"
)

// CartGateway is the write/read surface of the remote cart. Adjustments are
// delta-based so that concurrent consumers don't stomp each other's absolute
// values; the server serializes writes per cart.
type CartGateway interface {
	GetCart(ctx context.Context, token string) (*models.CartSnapshot, error)
	AdjustLine(ctx context.Context, token, productID string, delta int, variantCode string) error
	ApplyVoucher(ctx context.Context, token, code string) (*models.VoucherResult, error)
	ClearVoucher(ctx context.Context, token string) error
}

type cartGateway struct {
	client *Client
}

func NewCartGateway(client *Client) CartGateway {
	return &cartGateway{client: client}
}

type remoteCart struct {
	Items           []remoteCartItem `json:"items"`
	Subtotal        float64          `json:"subtotal"`
	VoucherDiscount float64          `json:"voucher_discount"`
	TotalAmount     float64          `json:"total_amount"`
	VoucherCode     string           `json:"voucher_code"`
}

type remoteCartItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	VariantCode string  `json:"variant_code"`
	Name        string  `json:"name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

type adjustLineRequest struct {
	ProductID     string `json:"product_id"`
	DeltaQuantity int    `json:"delta_quantity"`
	VariantCode   string `json:"variant_code,omitempty"`
}

type applyVoucherRequest struct {
	Code string `json:"code"`
}

func (g *cartGateway) GetCart(ctx context.Context, token string) (*models.CartSnapshot, error) {

	var remote remoteCart

	if err := g.client.do(ctx, "get_cart", http.MethodGet, "/api/v1/cart", token, nil, &remote); err != nil {
		return nil, err
	}

	snapshot := &models.CartSnapshot{
		Lines:              make([]models.CartLine, 0, len(remote.Items)),
		Subtotal:           remote.Subtotal,
		VoucherDiscount:    remote.VoucherDiscount,
		Total:              remote.TotalAmount,
		AppliedVoucherCode: remote.VoucherCode,
	}

	// Server insertion order is preserved; the client never reorders lines.
	for _, item := range remote.Items {
		snapshot.Lines = append(snapshot.Lines, models.CartLine{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantCode: item.VariantCode,
			Name:        item.Name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}

	return snapshot, nil
}

func (g *cartGateway) AdjustLine(ctx context.Context, token, productID string, delta int, variantCode string) error {

	req := adjustLineRequest{
		ProductID:     productID,
		DeltaQuantity: delta,
		VariantCode:   variantCode,
	}

	return g.client.do(ctx, "adjust_line", http.MethodPost, "/api/v1/cart/items", token, req, nil)
}

func (g *cartGateway) ApplyVoucher(ctx context.Context, token, code string) (*models.VoucherResult, error) {

	var result models.VoucherResult

	err := g.client.do(ctx, "apply_voucher", http.MethodPost, "/api/v1/cart/voucher", token, applyVoucherRequest{Code: code}, &result)
	if err != nil {

		// Invalid/expired/usage-exceeded codes come back as business
		// rejections; re-tag them so the UI renders the reason inline.
		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeBadRequest {
			return nil, errors.VoucherRejectedError(appErr.Message)
		}

		return nil, err
	}

	return &result, nil
}

func (g *cartGateway) ClearVoucher(ctx context.Context, token string) error {

	err := g.client.do(ctx, "clear_voucher", http.MethodDelete, "/api/v1/cart/voucher", token, nil, nil)

	// Clearing an already-clear voucher is a no-op, not a failure.
	if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeNotFound {
		return nil
	}

	return err
}
