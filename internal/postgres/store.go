package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-ledger/internal/audit"
	"github.com/ariefcatur/go-order-ledger/internal/orders"
)

// Store implements orders.Store on Postgres. Every InTx call is one
// read-committed transaction; product and order rows are locked with
// FOR UPDATE before they are changed.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const orderColumns = `id, order_number, customer_id, status, subtotal, tax, shipping, total, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.Status,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Total, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.OrderWithItems, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.OrderWithItems{}, orders.NewNotFound("order", id)
	}
	if err != nil {
		return orders.OrderWithItems{}, err
	}
	items, err := listItems(ctx, s.DB, id)
	if err != nil {
		return orders.OrderWithItems{}, err
	}
	return orders.OrderWithItems{Order: o, Items: items}, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const productColumns = `id, name, unit_price, unit_cost, quantity, reorder_level, status, created_at, updated_at`

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.UnitCost, &p.Quantity, &p.ReorderLevel, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, orderID string) ([]orders.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, line_subtotal
		FROM order_items WHERE order_id=$1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.OrderItem{}
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineSubtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Tx is the transaction-scoped side of Store.
type Tx struct{ tx pgx.Tx }

func (t *Tx) FindCustomer(ctx context.Context, id string) (orders.Customer, error) {
	var c orders.Customer
	err := t.tx.QueryRow(ctx, `SELECT id, name, email, phone FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Customer{}, orders.NewNotFound("customer", id)
	}
	return c, err
}

func (t *Tx) FindProduct(ctx context.Context, id string) (orders.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.NewNotFound("product", id)
	}
	return p, err
}

// derivedStatus is orders.DeriveStatus in SQL, evaluated against the new
// quantity expression. SET expressions see the pre-update row.
func derivedStatus(newQty string) string {
	return `CASE
		WHEN status = 'discontinued' THEN status
		WHEN ` + newQty + ` = 0 THEN 'out_of_stock'
		WHEN ` + newQty + ` <= reorder_level THEN 'low_stock'
		ELSE 'in_stock' END`
}

func (t *Tx) lockProduct(ctx context.Context, id string) (orders.StockLevel, error) {
	var lvl orders.StockLevel
	err := t.tx.QueryRow(ctx, `SELECT id, quantity, reorder_level, status FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&lvl.ProductID, &lvl.Quantity, &lvl.ReorderLevel, &lvl.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.StockLevel{}, orders.NewNotFound("product", id)
	}
	lvl.PreviousStatus = lvl.Status
	return lvl, err
}

// DecrementStock locks the row, then applies a conditional update: the
// quantity >= qty guard is evaluated by Postgres, never compared in Go.
func (t *Tx) DecrementStock(ctx context.Context, productID string, qty int) (orders.StockLevel, bool, error) {
	prev, err := t.lockProduct(ctx, productID)
	if err != nil {
		return orders.StockLevel{}, false, err
	}
	lvl := orders.StockLevel{ProductID: productID, PreviousStatus: prev.Status}
	err = t.tx.QueryRow(ctx, `
		UPDATE products
		SET quantity = quantity - $2, status = `+derivedStatus("(quantity - $2)")+`, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity, reorder_level, status`,
		productID, qty).Scan(&lvl.Quantity, &lvl.ReorderLevel, &lvl.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return prev, false, nil
	}
	if err != nil {
		return orders.StockLevel{}, false, fmt.Errorf("decrement stock %s: %w", productID, err)
	}
	return lvl, true, nil
}

func (t *Tx) IncrementStock(ctx context.Context, productID string, qty int) (orders.StockLevel, error) {
	prev, err := t.lockProduct(ctx, productID)
	if err != nil {
		return orders.StockLevel{}, err
	}
	lvl := orders.StockLevel{ProductID: productID, PreviousStatus: prev.Status}
	err = t.tx.QueryRow(ctx, `
		UPDATE products
		SET quantity = quantity + $2, status = `+derivedStatus("(quantity + $2)")+`, updated_at = now()
		WHERE id = $1
		RETURNING quantity, reorder_level, status`,
		productID, qty).Scan(&lvl.Quantity, &lvl.ReorderLevel, &lvl.Status)
	if err != nil {
		return orders.StockLevel{}, fmt.Errorf("increment stock %s: %w", productID, err)
	}
	return lvl, nil
}

func (t *Tx) InsertOrder(ctx context.Context, o orders.Order) error {
	ct, err := t.tx.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (order_number) DO NOTHING`,
		o.ID, o.OrderNumber, o.CustomerID, string(o.Status), o.Subtotal, o.Tax, o.Shipping, o.Total, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNumberTaken
	}
	return nil
}

func (t *Tx) InsertOrderItems(ctx context.Context, items []orders.OrderItem) error {
	b := &pgx.Batch{}
	for i, it := range items {
		b.Queue(`
			INSERT INTO order_items(id, order_id, line_no, product_id, quantity, unit_price, line_subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, i+1, it.ProductID, it.Quantity, it.UnitPrice, it.LineSubtotal)
	}
	br := t.tx.SendBatch(ctx, b)
	for range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

func (t *Tx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.NewNotFound("order", id)
	}
	return o, err
}

func (t *Tx) ListOrderItems(ctx context.Context, orderID string) ([]orders.OrderItem, error) {
	return listItems(ctx, t.tx, orderID)
}

func (t *Tx) UpdateOrderStatus(ctx context.Context, id string, status orders.Status, notes *string, at time.Time) (orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `
		UPDATE orders SET status=$2, notes=COALESCE($3, notes), updated_at=$4
		WHERE id=$1
		RETURNING `+orderColumns, id, string(status), notes, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.NewNotFound("order", id)
	}
	return o, err
}

func (t *Tx) DeleteOrder(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, id); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.NewNotFound("order", id)
	}
	return nil
}

func (t *Tx) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	var details any
	if len(e.Details) > 0 {
		details = string(e.Details)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO audit_log(id, actor_user_id, actor_role, action, entity_type, entity_id, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8)`,
		e.ID, e.ActorUserID, e.ActorRole, string(e.Action), e.EntityType, e.EntityID, details, e.CreatedAt)
	return err
}
