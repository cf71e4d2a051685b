package service_test

import (
	"fmt"
	"testing"

	"github.com/glowmart/cart-session/internal/models"
	service "github.com/glowmart/cart-session/internal/services"
	"github.com/stretchr/testify/assert"
)

func minOrder(v float64) *float64 {
	return &v
}

func approvedOrderVoucher(code string, min *float64) models.VoucherSuggestion {
	return models.VoucherSuggestion{
		Code:           code,
		DiscountValue:  10,
		DiscountType:   models.DiscountPercentage,
		MinOrderValue:  min,
		ApplyScope:     models.ScopeOrder,
		IsActive:       true,
		ApprovalStatus: models.ApprovalApproved,
	}
}

func TestSuggest(t *testing.T) {

	catalog := []models.VoucherSuggestion{
		approvedOrderVoucher("SALE10", nil),
		approvedOrderVoucher("SALE50", minOrder(500000)),
		{Code: "PENDING", ApplyScope: models.ScopeOrder, IsActive: true, ApprovalStatus: "pending"},
		{Code: "INACTIVE", ApplyScope: models.ScopeOrder, IsActive: false, ApprovalStatus: models.ApprovalApproved},
		{Code: "LIPSTICK5", ApplyScope: models.ScopeProduct, IsActive: true, ApprovalStatus: models.ApprovalApproved},
	}

	t.Run("No selection yields nothing", func(t *testing.T) {
		assert.Empty(t, service.Suggest(catalog, 600000, false))
	})

	t.Run("Zero subtotal yields nothing", func(t *testing.T) {
		assert.Empty(t, service.Suggest(catalog, 0, true))
	})

	t.Run("Filters approval, activity, scope and minimum order", func(t *testing.T) {
		suggestions := service.Suggest(catalog, 600000, true)

		codes := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			codes = append(codes, s.Code)
		}

		assert.Equal(t, []string{"SALE10", "SALE50"}, codes)
	})

	t.Run("Minimum order excludes below threshold", func(t *testing.T) {
		suggestions := service.Suggest(catalog, 400000, true)

		assert.Len(t, suggestions, 1)
		assert.Equal(t, "SALE10", suggestions[0].Code)
	})

	t.Run("Threshold itself qualifies", func(t *testing.T) {
		suggestions := service.Suggest(catalog, 500000, true)

		assert.Len(t, suggestions, 2)
	})

	t.Run("Result is capped", func(t *testing.T) {
		var wide []models.VoucherSuggestion
		for i := range 12 {
			wide = append(wide, approvedOrderVoucher(fmt.Sprintf("CODE%d", i), nil))
		}

		suggestions := service.Suggest(wide, 100000, true)

		assert.Len(t, suggestions, service.MaxSuggestions)
	})
}
