package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

const notificationColumns = `id, psp_reference, event_code, payload, status,
	attempts, last_attempt, created_at`

// NotificationRepository is the inbox for verified provider deliveries.
// The unique index on (psp_reference, event_code) absorbs at-least-once
// delivery before any reconciliation work happens.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.InboundNotification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO provider_notifications (
			id, psp_reference, event_code, payload, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.PSPReference, n.EventCode, []byte(n.Payload),
		n.Status, n.Attempts, n.LastAttempt, n.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateNotification)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ClaimPending(ctx context.Context, limit int) ([]domain.InboundNotification, error) {
	// SKIP LOCKED keeps concurrent workers off the same rows while they are
	// being claimed; flipping them to processing in the same statement keeps
	// the claim once the row locks are gone. A claimed row only leaves
	// processing through MarkProcessed or MarkFailed.
	rows, err := r.db.QueryContext(ctx,
		`UPDATE provider_notifications SET status = $1
		WHERE id IN (
			SELECT id FROM provider_notifications
			WHERE status = $2 ORDER BY created_at LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+notificationColumns,
		domain.NotificationStatusProcessing, domain.NotificationStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var items []domain.InboundNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		items = append(items, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return items, nil
}

func (r *NotificationRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.markStatus(ctx, id, domain.NotificationStatusProcessed)
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.markStatus(ctx, id, domain.NotificationStatusFailed)
}

func (r *NotificationRepository) markStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE provider_notifications SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("markStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("markStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("markStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanNotification(s scanner) (*domain.InboundNotification, error) {
	var n domain.InboundNotification
	var payload []byte
	err := s.Scan(
		&n.ID, &n.PSPReference, &n.EventCode, &payload,
		&n.Status, &n.Attempts, &n.LastAttempt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Payload = payload
	return &n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
