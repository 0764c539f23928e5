package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

const paymentColumns = `id, user_id, order_id, amount, currency, status,
	provider_reference, metadata, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*domain.Payment, error) {
	var p domain.Payment
	var orderID, reference sql.NullString
	var metadata []byte
	err := row.Scan(&p.ID, &p.UserID, &orderID, &p.Amount, &p.Currency, &p.Status,
		&reference, &metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.OrderID = orderID.String
	p.ProviderReference = reference.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.History); err != nil {
			return nil, fmt.Errorf("decode payment metadata: %w", err)
		}
	}
	return &p, nil
}

func (m *MySQLAdapter) CreatePayment(ctx context.Context, p *domain.Payment) error {
	metadata, err := json.Marshal(p.History)
	if err != nil {
		return fmt.Errorf("encode payment metadata: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, order_id, amount, currency, status, provider_reference, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, nullable(p.OrderID), p.Amount, p.Currency, p.Status,
		nullable(p.ProviderReference), metadata, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_reference = ?`, reference)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) LatestForOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) AttachReference(ctx context.Context, paymentID, reference string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE payments SET provider_reference = ?, updated_at = NOW() WHERE id = ?`,
		reference, paymentID,
	)
	if err != nil {
		return fmt.Errorf("attach reference: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeletePayment(ctx context.Context, paymentID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

// ApplySuccess settles a payment exactly once. The payment row is locked
// for the duration of the transaction so a duplicate webhook delivery
// re-reads the terminal state and becomes a no-op. The linked order is
// marked PAID and auto-confirmed from PENDING in the same commit, so no
// reader ever sees SUCCESS alongside UNPAID.
func (m *MySQLAdapter) ApplySuccess(ctx context.Context, reference string, ev domain.PaymentEvent) (bool, error) {
	return m.applyTerminal(ctx, reference, domain.PaymentStatusSuccess, ev)
}

// ApplyFailure settles a payment as FAILED. The linked order's payment
// state moves to FAILED but its status is left alone: the buyer may still
// retry with a fresh payment.
func (m *MySQLAdapter) ApplyFailure(ctx context.Context, reference string, ev domain.PaymentEvent) (bool, error) {
	return m.applyTerminal(ctx, reference, domain.PaymentStatusFailed, ev)
}

func (m *MySQLAdapter) applyTerminal(ctx context.Context, reference string, to domain.PaymentStatus, ev domain.PaymentEvent) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_reference = ? FOR UPDATE`, reference)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock payment: %w", err)
	}

	if p.Status.Terminal() {
		return false, nil
	}

	// At most one payment reaches SUCCESS per order. Two racing
	// initiations can leave two referenced PENDING rows for one order;
	// locking the order and re-reading its payment state here makes the
	// second success event a no-op instead of a double charge.
	if to == domain.PaymentStatusSuccess && p.OrderID != "" {
		var state domain.PaymentState
		err := tx.QueryRowContext(ctx,
			`SELECT payment_status FROM orders WHERE id = ? FOR UPDATE`, p.OrderID,
		).Scan(&state)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("lock order: %w", err)
		}
		if state == domain.PaymentStatePaid {
			return false, nil
		}
	}

	history := append(p.History, ev)
	metadata, err := json.Marshal(history)
	if err != nil {
		return false, fmt.Errorf("encode payment metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments SET status = ?, metadata = ?, updated_at = NOW() WHERE id = ?`,
		to, metadata, p.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update payment: %w", err)
	}

	if p.OrderID != "" {
		switch to {
		case domain.PaymentStatusSuccess:
			_, err = tx.ExecContext(ctx, `
				UPDATE orders
				SET payment_status = ?, status = IF(status = ?, ?, status), updated_at = NOW()
				WHERE id = ?`,
				domain.PaymentStatePaid, domain.OrderStatusPending, domain.OrderStatusConfirmed, p.OrderID,
			)
		case domain.PaymentStatusFailed:
			_, err = tx.ExecContext(ctx, `
				UPDATE orders SET payment_status = ?, updated_at = NOW() WHERE id = ?`,
				domain.PaymentStateFailed, p.OrderID,
			)
		}
		if err != nil {
			return false, fmt.Errorf("update order payment state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
