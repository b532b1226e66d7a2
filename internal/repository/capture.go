package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

const captureColumns = `id, payment_id, amount, created_by, created_at`

type CaptureRepository struct {
	db *sql.DB
}

func NewCaptureRepository(db *sql.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

func (r *CaptureRepository) Create(ctx context.Context, c *domain.Capture) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO captures (id, payment_id, amount, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PaymentID, c.Amount, c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CaptureRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Capture, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+captureColumns+` FROM captures WHERE id = $1`, id,
	)
	c, err := scanCapture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

func (r *CaptureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM captures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *CaptureRepository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Capture, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+captureColumns+` FROM captures WHERE payment_id = $1 ORDER BY created_at`,
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPaymentID: %w", err)
	}
	defer rows.Close()

	var captures []domain.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPaymentID: scan: %w", err)
		}
		captures = append(captures, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPaymentID: rows: %w", err)
	}
	return captures, nil
}

func scanCapture(s scanner) (*domain.Capture, error) {
	var c domain.Capture
	err := s.Scan(&c.ID, &c.PaymentID, &c.Amount, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
