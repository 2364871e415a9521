package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/onlineshop/backend/internal/cart"
)

// LineSnapshot is a value copy of a cart line taken at checkout time. It
// holds no reference back to the live product or cart, so later catalog or
// cart changes never alter a placed order.
type LineSnapshot struct {
	ProductID   string          `json:"product_id" db:"product_id"`
	Title       string          `json:"title" db:"title"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Amount      int             `json:"amount" db:"amount"`
	Color       string          `json:"color" db:"color"`
	CompanyName string          `json:"company_name" db:"company_name"`
	ImageURL    string          `json:"image_url" db:"image_url"`
}

// Order is immutable after creation. It is created exactly once per
// successful checkout and never deleted.
type Order struct {
	ID              string         `json:"id" db:"id"`
	UserID          string         `json:"user_id" db:"user_id"`
	CustomerName    string         `json:"customer_name" db:"customer_name"`
	DeliveryAddress string         `json:"delivery_address" db:"delivery_address"`
	Notes           string         `json:"notes,omitempty" db:"notes"`
	Items           []LineSnapshot `json:"items" db:"-"`
	NumItemsInCart  int            `json:"num_items_in_cart" db:"num_items_in_cart"`
	OrderTotal      string         `json:"order_total" db:"order_total"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// SnapshotLines copies cart lines by value into order line snapshots.
func SnapshotLines(items []cart.CartItem) []LineSnapshot {
	snapshots := make([]LineSnapshot, 0, len(items))
	for _, item := range items {
		snapshots = append(snapshots, LineSnapshot{
			ProductID:   item.ProductID,
			Title:       item.Title,
			Price:       item.Price,
			Amount:      item.Amount,
			Color:       item.Color,
			CompanyName: item.CompanyName,
			ImageURL:    item.ImageURL,
		})
	}
	return snapshots
}
