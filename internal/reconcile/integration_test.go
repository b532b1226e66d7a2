package reconcile_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/ledger"
	"github.com/solentpay/payment-reconciler/internal/reconcile"
	"github.com/solentpay/payment-reconciler/internal/repository"
	"github.com/solentpay/payment-reconciler/internal/testutil"
)

func setupSaga(t *testing.T, db *sql.DB) *reconcile.Service {
	t.Helper()
	return reconcile.NewService(
		repository.NewPaymentRepository(db),
		repository.NewCaptureRepository(db),
		repository.NewRefundRepository(db),
		repository.NewPaymentSessionRepository(db),
		repository.NewPaymentCollectionRepository(db),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func notification(sessionID uuid.UUID, code domain.EventCode, success bool, psp string, minor int64) domain.Notification {
	return domain.Notification{
		PSPReference:      psp,
		MerchantReference: sessionID.String(),
		EventCode:         code,
		Success:           success,
		Currency:          "USD",
		MinorUnitValue:    minor,
		EventDate:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReconcileLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	saga := setupSaga(t, db)
	ctx := context.Background()

	col := testutil.SeedCollection(t, db, "USD", "100")
	sess := testutil.SeedSession(t, db, col.ID, "USD", "100", domain.SessionStatusPending)
	p := testutil.SeedPayment(t, db, sess.ID, "USD", "100", nil)

	// Authorisation arrives first and creates the ledger document.
	require.NoError(t, saga.Reconcile(ctx, notification(sess.ID, domain.EventCodeAuthorisation, true, "psp-auth", 10000)))

	payments := repository.NewPaymentRepository(db)
	stored, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	state, err := ledger.Parse(stored.Data)
	require.NoError(t, err)
	assert.True(t, state.IsAuthorised())

	sessions := repository.NewPaymentSessionRepository(db)
	storedSess, err := sessions.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusAuthorized, storedSess.Status)

	collections := repository.NewPaymentCollectionRepository(db)
	storedCol, err := collections.GetByID(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStatusAuthorized, storedCol.Status)

	// Full capture completes the collection.
	require.NoError(t, saga.Reconcile(ctx, notification(sess.ID, domain.EventCodeCapture, true, "psp-cap", 10000)))

	assert.Equal(t, 1, testutil.CountCaptures(t, db, p.ID))

	stored, err = payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CapturedAt)

	storedCol, err = collections.GetByID(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStatusCompleted, storedCol.Status)
	assert.True(t, storedCol.CapturedAmount.Equal(decimal.RequireFromString("100")))
	assert.NotNil(t, storedCol.CompletedAt)

	// Redelivery of the capture is a ledger rewrite, not a second record.
	require.NoError(t, saga.Reconcile(ctx, notification(sess.ID, domain.EventCodeCapture, true, "psp-cap", 10000)))
	assert.Equal(t, 1, testutil.CountCaptures(t, db, p.ID))

	// Partial refund leaves the collection completed.
	require.NoError(t, saga.Reconcile(ctx, notification(sess.ID, domain.EventCodeRefund, true, "psp-ref", 4000)))

	assert.Equal(t, 1, testutil.CountRefunds(t, db, p.ID))
	storedCol, err = collections.GetByID(ctx, col.ID)
	require.NoError(t, err)
	assert.True(t, storedCol.RefundedAmount.Equal(decimal.RequireFromString("40")))
	assert.Equal(t, domain.CollectionStatusCompleted, storedCol.Status)
}

func TestReconcileCaptureFailureDisownsCapture(t *testing.T) {
	db := testutil.SetupTestDB(t)
	saga := setupSaga(t, db)
	ctx := context.Background()

	col := testutil.SeedCollection(t, db, "USD", "100")
	sess := testutil.SeedSession(t, db, col.ID, "USD", "100", domain.SessionStatusPending)
	p := testutil.SeedPayment(t, db, sess.ID, "USD", "100", nil)

	require.NoError(t, saga.Reconcile(ctx, notification(sess.ID, domain.EventCodeAuthorisation, true, "psp-auth", 10000)))
	require.NoError(t, saga.Reconcile(ctx, notification(sess.ID, domain.EventCodeCapture, true, "psp-cap", 10000)))
	require.Equal(t, 1, testutil.CountCaptures(t, db, p.ID))

	require.NoError(t, saga.Reconcile(ctx, notification(sess.ID, domain.EventCodeCaptureFailed, true, "psp-cap", 10000)))

	assert.Equal(t, 0, testutil.CountCaptures(t, db, p.ID))

	payments := repository.NewPaymentRepository(db)
	stored, err := payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CapturedAt)

	collections := repository.NewPaymentCollectionRepository(db)
	storedCol, err := collections.GetByID(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStatusAuthorized, storedCol.Status)
}

func TestNotificationInboxDeduplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	inbox := repository.NewNotificationRepository(db)
	ctx := context.Background()

	n := &domain.InboundNotification{
		ID:           uuid.New(),
		PSPReference: "psp-1",
		EventCode:    domain.EventCodeAuthorisation,
		Payload:      []byte(`{}`),
		Status:       domain.NotificationStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, inbox.Create(ctx, n))

	dup := *n
	dup.ID = uuid.New()
	err := inbox.Create(ctx, &dup)
	require.ErrorIs(t, err, domain.ErrDuplicateNotification)

	// Same reference under a different event code is a new delivery.
	other := *n
	other.ID = uuid.New()
	other.EventCode = domain.EventCodeCapture
	require.NoError(t, inbox.Create(ctx, &other))

	items, err := inbox.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, domain.NotificationStatusProcessing, it.Status)
	}

	// The claim moves rows out of pending, so a second worker sees nothing
	// even after the claiming statement's locks are released.
	items, err = inbox.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, inbox.MarkProcessed(ctx, n.ID))
	require.NoError(t, inbox.MarkFailed(ctx, other.ID))
	items, err = inbox.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}
