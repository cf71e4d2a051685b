package models

import "strings"

// LineIdentity identifies what a cart line purchases. "Selected" is a pure
// view concept the upstream cart knows nothing about, so it is keyed by this
// identity and re-joined onto every freshly fetched snapshot.
type LineIdentity struct {
	ProductID   string
	VariantCode string
}

func NewLineIdentity(productID, variantCode string) LineIdentity {
	return LineIdentity{
		ProductID:   productID,
		VariantCode: strings.ToLower(strings.TrimSpace(variantCode)),
	}
}

type CartLine struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	VariantCode string  `json:"variant_code,omitempty"`
	Name        string  `json:"name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
	Selected    bool    `json:"selected"`
	// StockCeiling is the maximum purchasable quantity resolved from the
	// catalog. nil means unknown, not unlimited.
	StockCeiling *int64 `json:"stock_ceiling,omitempty"`
}

func (l *CartLine) Identity() LineIdentity {
	return NewLineIdentity(l.ProductID, l.VariantCode)
}

// CartSnapshot is the reconciled server truth. Subtotal, VoucherDiscount and
// Total are upstream-computed figures for the whole cart, not filtered by
// selection.
type CartSnapshot struct {
	Lines              []CartLine `json:"lines"`
	Subtotal           float64    `json:"subtotal"`
	VoucherDiscount    float64    `json:"voucher_discount"`
	Total              float64    `json:"total"`
	AppliedVoucherCode string     `json:"applied_voucher_code,omitempty"`
}

func (s *CartSnapshot) HasSelection() bool {
	for i := range s.Lines {
		if s.Lines[i].Selected {
			return true
		}
	}

	return false
}

// CartView is what consumers render: the snapshot plus derived figures over
// the selected subset, UI flags and per-line guard errors.
type CartView struct {
	CartSnapshot

	CalculatedSubtotal float64 `json:"calculated_subtotal"`
	EffectiveDiscount  float64 `json:"effective_discount"`
	CalculatedTotal    float64 `json:"calculated_total"`

	Loading           bool `json:"loading"`
	IsUnauthenticated bool `json:"is_unauthenticated"`

	LineErrors map[string]string `json:"line_errors,omitempty"`
}

type StepQuantityRequest struct {
	Direction int `json:"direction" validate:"required,oneof=-1 1"`
}

// CommitQuantityRequest carries a raw free-text quantity entry. It stays a
// string so that mid-typing values ("", "1x") can be accepted transiently
// without issuing a mutation.
type CommitQuantityRequest struct {
	Value string `json:"value"`
}

type SelectionRequest struct {
	LineID   string `json:"line_id,omitempty"`
	All      bool   `json:"all,omitempty"`
	Selected bool   `json:"selected"`
}

type ApplyVoucherRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}
