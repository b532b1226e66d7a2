package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

func SeedCollection(t *testing.T, db *sql.DB, currency string, amount string) *domain.PaymentCollection {
	t.Helper()

	c := &domain.PaymentCollection{
		ID:           uuid.New(),
		CurrencyCode: currency,
		Amount:       decimal.RequireFromString(amount),
		Status:       domain.CollectionStatusAwaiting,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO payment_collections (
			id, currency_code, amount, authorized_amount, captured_amount,
			refunded_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, 0, 0, 0, $4, $5, $6)`,
		c.ID, c.CurrencyCode, c.Amount, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed collection: %v", err)
	}
	return c
}

func SeedSession(t *testing.T, db *sql.DB, collectionID uuid.UUID, currency, amount string, status domain.SessionStatus) *domain.PaymentSession {
	t.Helper()

	s := &domain.PaymentSession{
		ID:           uuid.New(),
		CollectionID: collectionID,
		CurrencyCode: currency,
		Amount:       decimal.RequireFromString(amount),
		Status:       status,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO payment_sessions (
			id, collection_id, currency_code, amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.CollectionID, s.CurrencyCode, s.Amount, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

func SeedPayment(t *testing.T, db *sql.DB, sessionID uuid.UUID, currency, amount string, data []byte) *domain.Payment {
	t.Helper()

	p := &domain.Payment{
		ID:           uuid.New(),
		SessionID:    sessionID,
		CurrencyCode: currency,
		Amount:       decimal.RequireFromString(amount),
		Data:         data,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO payments (
			id, session_id, currency_code, amount, data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.SessionID, p.CurrencyCode, p.Amount, data, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	if _, err := db.Exec(
		`UPDATE payment_sessions SET payment_id = $1 WHERE id = $2`, p.ID, sessionID,
	); err != nil {
		t.Fatalf("link payment to session: %v", err)
	}
	return p
}

func CountCaptures(t *testing.T, db *sql.DB, paymentID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM captures WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		t.Fatalf("count captures for payment %s: %v", paymentID, err)
	}
	return count
}

func CountRefunds(t *testing.T, db *sql.DB, paymentID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM refunds WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		t.Fatalf("count refunds for payment %s: %v", paymentID, err)
	}
	return count
}
