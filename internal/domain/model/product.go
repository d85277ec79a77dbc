package model

import "time"

// Product is the catalog row consulted during cart migration. Only the
// fields relevant to sellability and quantity clamping are modeled here;
// the full catalog schema lives with the catalog service.
type Product struct {
	ID     int64  `db:"id"     json:"id"`
	SKU    string `db:"sku"    json:"sku"`
	Name   string `db:"name"   json:"name"`
	Active bool   `db:"active" json:"active"`

	// TrackStock controls whether Stock participates in quantity clamping.
	TrackStock bool `db:"track_stock" json:"track_stock"`
	Stock      int  `db:"stock"       json:"stock"`

	// MaxPerOrder is the per-product quantity cap for a single cart.
	// Zero means no cap.
	MaxPerOrder int `db:"max_per_order" json:"max_per_order"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Sellable reports whether the product can be added to a cart at all.
func (p *Product) Sellable() bool {
	if !p.Active {
		return false
	}
	if p.TrackStock && p.Stock <= 0 {
		return false
	}
	return true
}

// ClampQuantity applies stock and per-order limits to a requested quantity.
func (p *Product) ClampQuantity(requested int) int {
	qty := requested
	if p.TrackStock && qty > p.Stock {
		qty = p.Stock
	}
	if p.MaxPerOrder > 0 && qty > p.MaxPerOrder {
		qty = p.MaxPerOrder
	}
	if qty < 0 {
		qty = 0
	}
	return qty
}
