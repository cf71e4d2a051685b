package service

import "github.com/glowmart/cart-session/internal/models"

// MaxSuggestions caps the suggestion strip so it stays scannable.
const MaxSuggestions = 5

// Suggest derives which vouchers are currently worth offering against the
// selected subtotal. It is pure and must be re-run whenever the subtotal or
// the selection set changes; results are never cached.
//
// A voucher qualifies when it is approved, active, order-scoped (category and
// product scoped vouchers are never blanket-suggested) and its minimum order
// value, if any, is met.
func Suggest(vouchers []models.VoucherSuggestion, calculatedSubtotal float64, hasSelection bool) []models.VoucherSuggestion {

	if !hasSelection || calculatedSubtotal <= 0 {
		return nil
	}

	suggestions := make([]models.VoucherSuggestion, 0, MaxSuggestions)

	for _, voucher := range vouchers {

		if voucher.ApprovalStatus != models.ApprovalApproved || !voucher.IsActive {
			continue
		}

		if voucher.ApplyScope != models.ScopeOrder {
			continue
		}

		if voucher.MinOrderValue != nil && calculatedSubtotal < *voucher.MinOrderValue {
			continue
		}

		suggestions = append(suggestions, voucher)

		if len(suggestions) == MaxSuggestions {
			break
		}
	}

	return suggestions
}
