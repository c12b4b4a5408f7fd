package cart

import (
	"github.com/shopspring/decimal"

	"github.com/campuseats/storefront/pkg/backend"
	"github.com/campuseats/storefront/pkg/catalog"
)

// Line is one item in the cart. Its JSON form is the item's fields plus
// quantity and kind, which is also how guest carts are persisted.
type Line struct {
	catalog.Item
	Quantity int          `json:"quantity"`
	Kind     catalog.Kind `json:"kind"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a single-vendor cart. All lines of a non-empty cart share VendorID
// and item ids are unique.
type Cart struct {
	Lines      []Line
	VendorID   string
	VendorName string
}

// newCart builds a cart from lines and derives its vendor binding.
func newCart(lines []Line) Cart {
	c := Cart{Lines: lines}
	c.rebind()
	return c
}

// fromView converts the server's cart into local state.
func fromView(view backend.CartView) Cart {
	lines := make([]Line, 0, len(view.Lines))
	for _, l := range view.Lines {
		if l.Quantity <= 0 {
			continue
		}
		vendorID := l.VendorID
		if vendorID == "" {
			vendorID = view.VendorID
		}
		lines = append(lines, Line{
			Item: catalog.Item{
				ID:         l.ItemID,
				Name:       l.Name,
				Price:      l.Price,
				Image:      l.Image,
				Category:   l.Category,
				VendorID:   vendorID,
				VendorName: view.VendorName,
			},
			Quantity: l.Quantity,
			Kind:     l.Kind,
		})
	}
	c := Cart{Lines: lines, VendorID: view.VendorID, VendorName: view.VendorName}
	if len(lines) == 0 {
		c.VendorID, c.VendorName = "", ""
	} else if c.VendorID == "" {
		c.rebind()
	}
	return c
}

// rebind recomputes the vendor binding from the lines. An empty cart is bound
// to nobody.
func (c *Cart) rebind() {
	c.VendorID, c.VendorName = "", ""
	for _, l := range c.Lines {
		if l.VendorID != "" {
			c.VendorID, c.VendorName = l.VendorID, l.VendorName
			return
		}
	}
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// BoundVendor returns the vendor the cart is bound to, or "" when empty.
func (c Cart) BoundVendor() string {
	if c.IsEmpty() {
		return ""
	}
	return c.VendorID
}

// Find returns the line for itemID.
func (c Cart) Find(itemID string) (Line, bool) {
	for _, l := range c.Lines {
		if l.ID == itemID {
			return l, true
		}
	}
	return Line{}, false
}

// Count is the total number of units.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Total is the sum of line subtotals.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Clone returns a deep copy.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = append([]Line(nil), c.Lines...)
	return out
}

func (c *Cart) index(itemID string) int {
	for i, l := range c.Lines {
		if l.ID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) remove(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.rebind()
}
