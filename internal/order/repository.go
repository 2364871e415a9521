package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// Create persists the order and its line snapshots in one transaction. The
// write is all-or-nothing: a half-written order is never visible.
func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_id", o.ID).Msg("Failed to rollback order transaction after panic")
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Str("order_id", o.ID).Msg("Failed to rollback order transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (id, user_id, customer_name, delivery_address, notes, num_items_in_cart, order_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, queryOrder,
		o.ID,
		o.UserID,
		o.CustomerName,
		o.DeliveryAddress,
		o.Notes,
		o.NumItemsInCart,
		o.OrderTotal,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryLine := `
		INSERT INTO order_lines (order_id, position, product_id, title, price, amount, color, company_name, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i, line := range o.Items {
		_, err = tx.Exec(ctx, queryLine,
			o.ID,
			i,
			line.ProductID,
			line.Title,
			line.Price,
			line.Amount,
			line.Color,
			line.CompanyName,
			line.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order line for order %s: %w", o.ID, err)
		}
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	queryOrder := `
		SELECT id, user_id, customer_name, delivery_address, notes, num_items_in_cart, order_total, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var o Order
	err := r.db.QueryRow(ctx, queryOrder, id).Scan(
		&o.ID,
		&o.UserID,
		&o.CustomerName,
		&o.DeliveryAddress,
		&o.Notes,
		&o.NumItemsInCart,
		&o.OrderTotal,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	lines, err := r.linesForOrders(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = lines[o.ID]

	return &o, nil
}

func (r *postgresRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]Order, int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders for user %s: %w", userID, err)
	}

	query := `
		SELECT id, user_id, customer_name, delivery_address, notes, num_items_in_cart, order_total, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *postgresRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error) {
	query := `
		SELECT id, user_id, customer_name, delivery_address, notes, num_items_in_cart, order_total, created_at, updated_at
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders between %s and %s: %w", from, to, err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.CustomerName,
			&o.DeliveryAddress,
			&o.Notes,
			&o.NumItemsInCart,
			&o.OrderTotal,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]LineSnapshot, 0)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *postgresRepository) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	lines, err := r.linesForOrders(ctx, ids)
	if err != nil {
		return err
	}

	for i := range orders {
		if l, ok := lines[orders[i].ID]; ok {
			orders[i].Items = l
		}
	}

	return nil
}

func (r *postgresRepository) linesForOrders(ctx context.Context, orderIDs []string) (map[string][]LineSnapshot, error) {
	query := `
		SELECT order_id, product_id, title, price, amount, color, company_name, image_url
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[string][]LineSnapshot)
	for rows.Next() {
		var orderID string
		var line LineSnapshot
		err := rows.Scan(
			&orderID,
			&line.ProductID,
			&line.Title,
			&line.Price,
			&line.Amount,
			&line.Color,
			&line.CompanyName,
			&line.ImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		lines[orderID] = append(lines[orderID], line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order lines: %w", err)
	}

	return lines, nil
}
