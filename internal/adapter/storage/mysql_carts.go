package storage

import (
	"context"
	"fmt"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

func (m *MySQLAdapter) AddLine(ctx context.Context, userID, productID string, qty int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = NOW()`,
		userID, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SetLineQuantity(ctx context.Context, userID, productID string, qty int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE cart_lines SET quantity = ?, updated_at = NOW()
		WHERE user_id = ? AND product_id = ?`,
		qty, userID, productID,
	)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Guard against the no-op case: the row may exist with the same quantity.
		var n int
		err = m.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cart_lines WHERE user_id = ? AND product_id = ?`,
			userID, productID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("check cart line: %w", err)
		}
		if n == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (m *MySQLAdapter) RemoveLine(ctx context.Context, userID, productID string) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT user_id, product_id, quantity, created_at, updated_at
		FROM cart_lines WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var out []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) Clear(ctx context.Context, userID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
