package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlineshop/backend/internal/catalog"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrNoProduct     = errors.New("product is required")
	ErrCartNotFound  = errors.New("cart not found")
)

// defaultColor is used when the catalog declares no colors for a product.
const defaultColor = "#222"

type CartItem struct {
	ProductID   string          `json:"product_id" db:"product_id"`
	Title       string          `json:"title" db:"title"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Amount      int             `json:"amount" db:"amount"`
	Color       string          `json:"color" db:"color"`
	CompanyName string          `json:"company_name" db:"company_name"`
	ImageURL    string          `json:"image_url" db:"image_url"`
}

// Cart is the mutable per-user aggregate. NumItemsInCart, CartTotal and
// OrderTotal are derived and recomputed after every mutation; they are never
// assigned directly.
type Cart struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Items          []CartItem      `json:"items" db:"-"`
	NumItemsInCart int             `json:"num_items_in_cart" db:"num_items_in_cart"`
	CartTotal      decimal.Decimal `json:"cart_total" db:"cart_total"`
	Shipping       decimal.Decimal `json:"shipping" db:"shipping"`
	Tax            decimal.Decimal `json:"tax" db:"tax"`
	OrderTotal     decimal.Decimal `json:"order_total" db:"order_total"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// AddItem merges amount units of the product into the cart. An existing line
// for the same product keeps the price and attributes captured when it was
// first added; only its amount grows. A new line snapshots the product's
// current price, title, image and first color.
func (c *Cart) AddItem(p *catalog.Product, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if p == nil {
		return ErrNoProduct
	}

	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			c.Items[i].Amount += amount
			c.recalculate()
			return nil
		}
	}

	color := defaultColor
	if len(p.Colors) > 0 {
		color = p.Colors[0]
	}

	c.Items = append(c.Items, CartItem{
		ProductID:   p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Amount:      amount,
		Color:       color,
		CompanyName: p.CompanyName,
		ImageURL:    p.Image,
	})
	c.recalculate()
	return nil
}

// RemoveItem decrements the line for productID by amount. Removing more than
// the line holds deletes the line. A missing line is a no-op so client
// retries stay safe.
func (c *Cart) RemoveItem(productID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}

		c.Items[i].Amount -= amount
		if c.Items[i].Amount <= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		c.recalculate()
		return nil
	}

	return nil
}

// Clear empties the cart's lines. The cart itself survives checkout.
func (c *Cart) Clear() {
	c.Items = nil
	c.recalculate()
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) recalculate() {
	num := 0
	total := decimal.Zero
	for _, item := range c.Items {
		num += item.Amount
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Amount))))
	}
	c.NumItemsInCart = num
	c.CartTotal = total
	c.OrderTotal = total.Add(c.Shipping).Add(c.Tax)
}
