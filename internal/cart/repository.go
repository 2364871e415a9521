package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID string) (*Cart, error) {
	queryCart := `
		SELECT id, user_id, num_items_in_cart, cart_total, shipping, tax, order_total, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`

	var c Cart
	err := r.db.QueryRow(ctx, queryCart, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.NumItemsInCart,
		&c.CartTotal,
		&c.Shipping,
		&c.Tax,
		&c.OrderTotal,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}

	queryItems := `
		SELECT product_id, title, price, amount, color, company_name, image_url
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, queryItems, c.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items for cart %s: %w", c.ID, err)
	}
	defer rows.Close()

	items := make([]CartItem, 0)
	for rows.Next() {
		var item CartItem
		err := rows.Scan(
			&item.ProductID,
			&item.Title,
			&item.Price,
			&item.Amount,
			&item.Color,
			&item.CompanyName,
			&item.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item for cart %s: %w", c.ID, err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items for cart %s: %w", c.ID, err)
	}

	c.Items = items

	return &c, nil
}

// Save writes the cart row and replaces its lines in one transaction, so a
// reader never observes a cart whose stored totals disagree with its lines.
func (r *postgresRepository) Save(ctx context.Context, cart *Cart) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("cart_id", cart.ID).Msg("Failed to rollback cart transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	cart.UpdatedAt = time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = cart.UpdatedAt
	}

	queryCart := `
		INSERT INTO carts (id, user_id, num_items_in_cart, cart_total, shipping, tax, order_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET num_items_in_cart = EXCLUDED.num_items_in_cart,
		    cart_total = EXCLUDED.cart_total,
		    shipping = EXCLUDED.shipping,
		    tax = EXCLUDED.tax,
		    order_total = EXCLUDED.order_total,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = tx.Exec(ctx, queryCart,
		cart.ID,
		cart.UserID,
		cart.NumItemsInCart,
		cart.CartTotal,
		cart.Shipping,
		cart.Tax,
		cart.OrderTotal,
		cart.CreatedAt,
		cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert cart for user %s: %w", cart.UserID, err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart items for cart %s: %w", cart.ID, err)
	}

	queryItem := `
		INSERT INTO cart_items (cart_id, position, product_id, title, price, amount, color, company_name, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i, item := range cart.Items {
		_, err = tx.Exec(ctx, queryItem,
			cart.ID,
			i,
			item.ProductID,
			item.Title,
			item.Price,
			item.Amount,
			item.Color,
			item.CompanyName,
			item.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert cart item %s for cart %s: %w", item.ProductID, cart.ID, err)
		}
	}

	return nil
}
