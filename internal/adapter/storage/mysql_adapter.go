package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// retryable reports MySQL deadlock (1213) and lock-wait-timeout (1205),
// the transient serialization conflicts worth one internal retry.
func retryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

const productColumns = `id, user_id, title, stock, is_active, is_sold,
	original_price, discounted_price, archived_at, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var discounted sql.NullInt64
	var archived sql.NullTime
	err := row.Scan(&p.ID, &p.SellerID, &p.Title, &p.Stock, &p.IsActive, &p.IsSold,
		&p.OriginalPrice, &discounted, &archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if discounted.Valid {
		v := discounted.Int64
		p.DiscountedPrice = &v
	}
	if archived.Valid {
		t := archived.Time
		p.ArchivedAt = &t
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += "?"
		args = append(args, id)
	}

	rows, err := m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeleteProduct hard-deletes when nothing references the product, else
// archives it. The pre-check count and the delete share one transaction
// so a concurrent checkout cannot slip an item in between.
func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var dependents int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_items WHERE product_id = ?`, id,
	).Scan(&dependents)
	if err != nil {
		return false, fmt.Errorf("count dependents: %w", err)
	}

	if dependents == 0 {
		result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
		if err != nil {
			return false, fmt.Errorf("delete product: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return false, domain.ErrNotFound
		}
		return false, tx.Commit()
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET is_active = 0, archived_at = NOW(), updated_at = NOW()
		WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("archive product: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, domain.ErrNotFound
	}
	return true, tx.Commit()
}

func (m *MySQLAdapter) GetEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := m.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query user email: %w", err)
	}
	return email, nil
}
