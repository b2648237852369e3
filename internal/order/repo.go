package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrStatusChanged = errors.New("order status changed since it was read")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	GetItems(ctx context.Context, orderID string) ([]Item, error)
	GetHistory(ctx context.Context, orderID string) ([]StatusEvent, error)
	// Update stores status, comment and actual delivery time and appends events.
	// It fails with ErrStatusChanged unless the stored status is still from.
	Update(ctx context.Context, o *Order, from Status, appended []StatusEvent) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Page clamps limit/offset to the API defaults.
func Page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderColumns = `id, user_id, restaurant_id, delivery_address_id, driver_id,
    price::text, discount::text, final_price::text, comment, status,
    actual_delivery_time, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.RestaurantID, &o.DeliveryAddressID, &o.DriverID,
		&o.Price, &o.Discount, &o.FinalPrice, &o.Comment, &o.Status,
		&o.ActualDeliveryTime, &o.CreatedAt, &o.UpdatedAt)
}

// Create writes the order, its lines and its history in one transaction.
func (r *PGRepo) Create(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO orders (id, user_id, restaurant_id, delivery_address_id, driver_id,
                        price, discount, final_price, comment, status,
                        actual_delivery_time, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, o.ID, o.UserID, o.RestaurantID, o.DeliveryAddressID, o.DriverID,
		o.Price, o.Discount, o.FinalPrice, o.Comment, o.Status,
		o.ActualDeliveryTime, o.CreatedAt, o.UpdatedAt); err != nil {
		return err
	}

	for i, it := range o.Cart {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, position, menu_item_id, item_name, quantity, price, comment)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, it.ID, o.ID, i, it.MenuItemID, it.ItemName, it.Quantity, it.Price, it.Comment); err != nil {
			return err
		}
	}
	if err := insertHistory(ctx, tx, o.ID, o.History); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID string, events []StatusEvent) error {
	for _, ev := range events {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_status_history (order_id, status, created_at)
      VALUES ($1,$2,$3)
    `, orderID, ev.Status, ev.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Cart, err = r.GetItems(ctx, id); err != nil {
		return nil, err
	}
	if o.History, err = r.GetHistory(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Order, error) {
	limit, offset = Page(limit, offset)
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
    ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	limit, offset = Page(limit, offset)
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (r *PGRepo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetItems(ctx context.Context, orderID string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, menu_item_id, item_name, quantity, price::text, comment
    FROM order_items
    WHERE order_id = $1
    ORDER BY position
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.ItemName, &it.Quantity, &it.Price, &it.Comment); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) GetHistory(ctx context.Context, orderID string) ([]StatusEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT status, created_at
    FROM order_status_history
    WHERE order_id = $1
    ORDER BY id
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		var ev StatusEvent
		if err := rows.Scan(&ev.Status, &ev.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, o *Order, from Status, appended []StatusEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE orders
    SET status = $2, comment = $3, actual_delivery_time = $4, updated_at = $5
    WHERE id = $1 AND status = $6
  `, o.ID, o.Status, o.Comment, o.ActualDeliveryTime, o.UpdatedAt, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrStatusChanged
		}
		return ErrNotFound
	}
	if err := insertHistory(ctx, tx, o.ID, appended); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
