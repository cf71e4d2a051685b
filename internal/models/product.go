package models

type Variant struct {
	Code          string  `json:"code"`
	Name          string  `json:"name,omitempty"`
	StockQuantity int64   `json:"stock_quantity"`
	Price         float64 `json:"price,omitempty"`
}

// Product is the catalog detail record consulted for stock ceilings. The
// top-level stock figure is a pointer because upstream omits it for
// variant-only products; the resolver treats anything absent or negative as
// unknown rather than zero.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	StockQuantity *float64  `json:"stock_quantity,omitempty"`
	Variants      []Variant `json:"variants,omitempty"`
	Status        string    `json:"status,omitempty"`
}
