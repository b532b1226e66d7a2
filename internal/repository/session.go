package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

const sessionColumns = `id, collection_id, currency_code, amount, status,
	payment_id, created_at, updated_at`

type PaymentSessionRepository struct {
	db *sql.DB
}

func NewPaymentSessionRepository(db *sql.DB) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

func (r *PaymentSessionRepository) Create(ctx context.Context, s *domain.PaymentSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_sessions (
			id, collection_id, currency_code, amount, status, payment_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.CollectionID, s.CurrencyCode, s.Amount, s.Status, s.PaymentID, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM payment_sessions WHERE id = $1`, id,
	)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return s, nil
}

func (r *PaymentSessionRepository) ListByCollectionID(ctx context.Context, collectionID uuid.UUID) ([]domain.PaymentSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM payment_sessions WHERE collection_id = $1 ORDER BY created_at`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCollectionID: %w", err)
	}
	defer rows.Close()

	var sessions []domain.PaymentSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByCollectionID: scan: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByCollectionID: rows: %w", err)
	}
	return sessions, nil
}

func (r *PaymentSessionRepository) Update(ctx context.Context, s *domain.PaymentSession) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_sessions SET status = $1, payment_id = $2, updated_at = now()
		WHERE id = $3`,
		s.Status, s.PaymentID, s.ID,
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

func scanSession(s scanner) (*domain.PaymentSession, error) {
	var sess domain.PaymentSession
	var paymentID uuid.NullUUID

	err := s.Scan(
		&sess.ID, &sess.CollectionID, &sess.CurrencyCode, &sess.Amount,
		&sess.Status, &paymentID, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		sess.PaymentID = &paymentID.UUID
	}
	return &sess, nil
}
