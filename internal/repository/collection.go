package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

const collectionColumns = `id, currency_code, amount, authorized_amount,
	captured_amount, refunded_amount, status, completed_at, created_at, updated_at`

type PaymentCollectionRepository struct {
	db *sql.DB
}

func NewPaymentCollectionRepository(db *sql.DB) *PaymentCollectionRepository {
	return &PaymentCollectionRepository{db: db}
}

func (r *PaymentCollectionRepository) Create(ctx context.Context, c *domain.PaymentCollection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_collections (
			id, currency_code, amount, authorized_amount, captured_amount,
			refunded_amount, status, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.CurrencyCode, c.Amount, c.AuthorizedAmount, c.CapturedAmount,
		c.RefundedAmount, c.Status, c.CompletedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentCollectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentCollection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM payment_collections WHERE id = $1`, id,
	)
	c, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

func (r *PaymentCollectionRepository) Update(ctx context.Context, c *domain.PaymentCollection) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_collections SET authorized_amount = $1, captured_amount = $2,
			refunded_amount = $3, status = $4, completed_at = $5, updated_at = now()
		WHERE id = $6`,
		c.AuthorizedAmount, c.CapturedAmount, c.RefundedAmount, c.Status, c.CompletedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

func scanCollection(s scanner) (*domain.PaymentCollection, error) {
	var c domain.PaymentCollection
	err := s.Scan(
		&c.ID, &c.CurrencyCode, &c.Amount, &c.AuthorizedAmount,
		&c.CapturedAmount, &c.RefundedAmount, &c.Status, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
