package gateway_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glowmart/cart-session/internal/config"
	appErrors "github.com/glowmart/cart-session/internal/errors"
	"github.com/glowmart/cart-session/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *gateway.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return gateway.NewClient(&config.Upstream{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
}

func TestCartGatewayGetCart(t *testing.T) {
	t.Run("Maps the upstream cart onto a snapshot in server order", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/v1/cart", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": "l1", "product_id": "p1", "name": "Matte Lipstick", "unit_price": 10.0, "quantity": 2, "line_total": 20.0},
					{"id": "l2", "product_id": "p2", "variant_code": "rose-01", "name": "Blush", "unit_price": 8.0, "quantity": 1, "line_total": 8.0},
				},
				"subtotal":         28.0,
				"voucher_discount": 3.0,
				"total_amount":     25.0,
				"voucher_code":     "SALE3",
			})
		})

		snapshot, err := gateway.NewCartGateway(client).GetCart(t.Context(), "test-token")

		require.NoError(t, err)
		require.Len(t, snapshot.Lines, 2)
		assert.Equal(t, "l1", snapshot.Lines[0].ID)
		assert.Equal(t, "rose-01", snapshot.Lines[1].VariantCode)
		assert.Equal(t, 28.0, snapshot.Subtotal)
		assert.Equal(t, 25.0, snapshot.Total)
		assert.Equal(t, "SALE3", snapshot.AppliedVoucherCode)
	})

	t.Run("401 maps to the unauthorized error code", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "token expired"})
		})

		_, err := gateway.NewCartGateway(client).GetCart(t.Context(), "stale")

		require.Error(t, err)
		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeUnauthorized, appErr.Code)
		assert.Equal(t, "token expired", appErr.Message)
	})

	t.Run("5xx maps to an upstream error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := gateway.NewCartGateway(client).GetCart(t.Context(), "test-token")

		require.Error(t, err)
		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeUpstream, appErr.Code)
	})
}

func TestCartGatewayAdjustLine(t *testing.T) {
	t.Run("Submits the signed delta with the variant code", func(t *testing.T) {
		var got map[string]any

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/cart/items", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		})

		err := gateway.NewCartGateway(client).AdjustLine(t.Context(), "test-token", "p2", -1, "rose-01")

		require.NoError(t, err)
		assert.Equal(t, "p2", got["product_id"])
		assert.Equal(t, float64(-1), got["delta_quantity"])
		assert.Equal(t, "rose-01", got["variant_code"])
	})
}

func TestCartGatewayApplyVoucher(t *testing.T) {
	t.Run("Returns the superseding voucher result", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/cart/voucher", r.URL.Path)

			_ = json.NewEncoder(w).Encode(map[string]any{
				"voucher_code":     "SALE10",
				"voucher_discount": 5.0,
				"total_amount":     45.0,
			})
		})

		result, err := gateway.NewCartGateway(client).ApplyVoucher(t.Context(), "test-token", "SALE10")

		require.NoError(t, err)
		assert.Equal(t, "SALE10", result.AppliedVoucherCode)
		assert.Equal(t, 5.0, result.VoucherDiscount)
		assert.Equal(t, 45.0, result.TotalAmount)
	})

	t.Run("Business rejection is re-tagged with the reason verbatim", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Voucher usage limit reached"})
		})

		_, err := gateway.NewCartGateway(client).ApplyVoucher(t.Context(), "test-token", "MAXED")

		require.Error(t, err)
		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeVoucherRejected, appErr.Code)
		assert.Equal(t, "Voucher usage limit reached", appErr.Message)
	})
}

func TestCartGatewayClearVoucher(t *testing.T) {
	t.Run("Clearing an already-clear voucher is a no-op", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		err := gateway.NewCartGateway(client).ClearVoucher(t.Context(), "test-token")

		assert.NoError(t, err)
	})

	t.Run("Other failures surface", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		err := gateway.NewCartGateway(client).ClearVoucher(t.Context(), "test-token")

		require.Error(t, err)
		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeUpstream, appErr.Code)
	})
}
