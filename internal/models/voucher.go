package models

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type ApplyScope string

const (
	ScopeOrder    ApplyScope = "order"
	ScopeProduct  ApplyScope = "product"
	ScopeCategory ApplyScope = "category"
)

const ApprovalApproved = "approved"

// VoucherSuggestion is an entry of the active voucher catalog. Only approved,
// active, order-scoped vouchers whose minimum order value is met qualify for
// blanket suggestion on the cart page.
type VoucherSuggestion struct {
	Code           string       `json:"code"`
	DiscountValue  float64      `json:"discount_value"`
	DiscountType   DiscountType `json:"discount_type"`
	MinOrderValue  *float64     `json:"min_order_value,omitempty"`
	ApplyScope     ApplyScope   `json:"apply_scope"`
	IsActive       bool         `json:"is_active"`
	ApprovalStatus string       `json:"approval_status"`
}

// VoucherResult is the upstream response to a successful voucher application.
type VoucherResult struct {
	VoucherDiscount    float64 `json:"voucher_discount"`
	AppliedVoucherCode string  `json:"voucher_code"`
	TotalAmount        float64 `json:"total_amount"`
}
