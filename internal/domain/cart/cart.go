// Package cart implements the order-in-progress: line items keyed by product,
// quantity reconciliation against the best-known stock ceiling, and subtotal
// calculation.
//
// Stock is authoritative on the server; the clamping here is a defensive
// approximation that keeps the client from visibly over-committing quantity
// without a round trip. The real check happens at order creation.
package cart

import (
	"github.com/shopspring/decimal"
)

// Line is a single cart row, uniquely keyed by ProductID.
// Stock is nil when no ceiling is known for the product.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	Stock     *int            `json:"stock,omitempty"`
}

// Cart holds the current set of lines in insertion order.
// At most one line exists per product.
type Cart struct {
	Lines []Line `json:"lines"`
}

// find returns the index of the line for id, or -1.
func (c *Cart) find(id string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == id {
			return i
		}
	}
	return -1
}

// Get returns the line for id, if present.
func (c *Cart) Get(id string) (Line, bool) {
	if i := c.find(id); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// Add merges item into the cart and reports whether the cart changed.
//
// The stock ceiling is resolved as: the incoming item's stock if known, else
// the existing line's stock if known, else unknown. With an unknown ceiling
// the merge is silently rejected: quantity can never be safely increased
// without a known ceiling. Otherwise the resulting quantity is
// min(existing+incoming, ceiling); a result that is non-positive or equal to
// the existing quantity leaves the cart untouched.
func (c *Cart) Add(item Line) bool {
	existing := 0
	idx := c.find(item.ProductID)

	ceiling := item.Stock
	if idx >= 0 {
		existing = c.Lines[idx].Quantity
		if ceiling == nil {
			ceiling = c.Lines[idx].Stock
		}
	}
	if ceiling == nil {
		return false
	}

	final := existing + item.Quantity
	if final > *ceiling {
		final = *ceiling
	}
	if final <= 0 || final == existing {
		return false
	}

	if idx >= 0 {
		c.Lines[idx].Quantity = final
		c.Lines[idx].Stock = ceiling
		return true
	}

	item.Quantity = final
	item.Stock = ceiling
	c.Lines = append(c.Lines, item)
	return true
}

// SetQuantity sets the quantity of the line for id and reports whether the
// cart changed. A quantity of zero or less removes the line. When the line's
// stock is unknown only decreases are accepted; when known the quantity is
// clamped to the stock ceiling.
func (c *Cart) SetQuantity(id string, quantity int) bool {
	idx := c.find(id)
	if idx < 0 {
		return false
	}

	if quantity <= 0 {
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		return true
	}

	line := &c.Lines[idx]
	if line.Stock == nil {
		if quantity > line.Quantity {
			return false
		}
	} else if quantity > *line.Stock {
		quantity = *line.Stock
	}

	if quantity == line.Quantity {
		return false
	}
	line.Quantity = quantity
	return true
}

// Remove deletes the line for id and reports whether it existed.
func (c *Cart) Remove(id string) bool {
	idx := c.find(id)
	if idx < 0 {
		return false
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return true
}

// Clear removes all lines.
func (c *Cart) Clear() {
	c.Lines = nil
}

// TotalItems returns the sum of all line quantities.
func (c *Cart) TotalItems() int {
	n := 0
	for i := range c.Lines {
		n += c.Lines[i].Quantity
	}
	return n
}

// Subtotal returns the sum of price times quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range c.Lines {
		qty := decimal.NewFromInt(int64(c.Lines[i].Quantity))
		sum = sum.Add(c.Lines[i].Price.Mul(qty))
	}
	return sum
}
