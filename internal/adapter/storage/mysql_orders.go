package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

// CreateOrder reserves stock and inserts the order plus its items in one
// transaction. The decrement is conditional (`stock >= qty` in the WHERE
// clause) so a concurrent checkout racing on the same product fails the
// whole transaction instead of driving stock negative. One retry on a
// transient serialization conflict.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order *domain.Order) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = m.createOrderTx(ctx, order)
		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

func (m *MySQLAdapter) createOrderTx(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, item := range order.Items {
		// is_sold flips when the decrement lands on zero; MySQL applies
		// SET assignments left to right, so (stock = 0) sees the new value.
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, is_sold = (stock = 0), updated_at = NOW()
			WHERE id = ? AND stock >= ?`,
			item.Quantity, item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			available := 0
			_ = tx.QueryRowContext(ctx,
				`SELECT stock FROM products WHERE id = ?`, item.ProductID,
			).Scan(&available)
			return &domain.StockShortageError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, currency, total_amount, status, payment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.BuyerID, order.Currency, order.TotalAmount,
		order.Status, order.PaymentStatus, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, currency, total_amount, status, payment_status, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.BuyerID, &o.Currency, &o.TotalAmount, &o.Status, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	items, err := m.orderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return m.listOrders(ctx, `
		SELECT id, buyer_id, currency, total_amount, status, payment_status, created_at, updated_at
		FROM orders WHERE buyer_id = ? ORDER BY created_at DESC`, buyerID)
}

func (m *MySQLAdapter) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return m.listOrders(ctx, `
		SELECT DISTINCT o.id, o.buyer_id, o.currency, o.total_amount, o.status, o.payment_status, o.created_at, o.updated_at
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		JOIN products p ON p.id = oi.product_id
		WHERE p.user_id = ? ORDER BY o.created_at DESC`, sellerID)
}

func (m *MySQLAdapter) listOrders(ctx context.Context, query string, arg any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.Currency, &o.TotalAmount, &o.Status,
			&o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := m.orderItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

// UpdateStatus is guarded: the row must still hold `from`, so two racing
// transitions cannot both win.
func (m *MySQLAdapter) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (m *MySQLAdapter) CancelOrder(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	items, err := m.orderItemsTx(ctx, tx, id)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW()
		WHERE id = ? AND status NOT IN (?, ?)`,
		domain.OrderStatusCancelled, id, domain.OrderStatusDelivered, domain.OrderStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrInvalidState
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock + ?, is_sold = 0, updated_at = NOW()
			WHERE id = ?`, it.Quantity, it.ProductID); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) DeleteOrder(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	items, err := m.orderItemsTx(ctx, tx, id)
	if err != nil {
		return err
	}

	var status domain.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ? FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock order: %w", err)
	}

	// A cancelled order already gave its stock back.
	if status != domain.OrderStatusCancelled {
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock + ?, is_sold = 0, updated_at = NOW()
				WHERE id = ?`, it.Quantity, it.ProductID); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, id); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) orderItemsTx(ctx context.Context, tx *sql.Tx, orderID string) ([]domain.OrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
