package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

const refundColumns = `id, payment_id, amount, created_by, created_at`

type RefundRepository struct {
	db *sql.DB
}

func NewRefundRepository(db *sql.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, ref *domain.Refund) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refunds (id, payment_id, amount, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ref.ID, ref.PaymentID, ref.Amount, ref.CreatedBy, ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id,
	)
	ref, err := scanRefund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return ref, nil
}

func (r *RefundRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refunds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *RefundRepository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE payment_id = $1 ORDER BY created_at`,
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPaymentID: %w", err)
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		ref, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPaymentID: scan: %w", err)
		}
		refunds = append(refunds, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPaymentID: rows: %w", err)
	}
	return refunds, nil
}

func scanRefund(s scanner) (*domain.Refund, error) {
	var ref domain.Refund
	err := s.Scan(&ref.ID, &ref.PaymentID, &ref.Amount, &ref.CreatedBy, &ref.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
