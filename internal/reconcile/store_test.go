package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

// memStore backs every store interface with maps so saga runs can be driven
// end to end without a database. Reads and writes copy values, matching the
// row-per-call behavior of the SQL repositories.
type memStore struct {
	mu          sync.Mutex
	payments    map[uuid.UUID]*domain.Payment
	captures    map[uuid.UUID]*domain.Capture
	refunds     map[uuid.UUID]*domain.Refund
	sessions    map[uuid.UUID]*domain.PaymentSession
	collections map[uuid.UUID]*domain.PaymentCollection

	failPaymentUpdate    error
	failCollectionUpdate error
	failCaptureCreate    error
}

func newMemStore() *memStore {
	return &memStore{
		payments:    make(map[uuid.UUID]*domain.Payment),
		captures:    make(map[uuid.UUID]*domain.Capture),
		refunds:     make(map[uuid.UUID]*domain.Refund),
		sessions:    make(map[uuid.UUID]*domain.PaymentSession),
		collections: make(map[uuid.UUID]*domain.PaymentCollection),
	}
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	return clonePayment(p), nil
}

func (m *memStore) Update(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPaymentUpdate != nil {
		return m.failPaymentUpdate
	}
	if _, ok := m.payments[p.ID]; !ok {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrNotFound)
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

type memCaptures struct{ m *memStore }

func (c memCaptures) GetByID(ctx context.Context, id uuid.UUID) (*domain.Capture, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	capture, ok := c.m.captures[id]
	if !ok {
		return nil, fmt.Errorf("capture %s: %w", id, domain.ErrNotFound)
	}
	out := *capture
	return &out, nil
}

func (c memCaptures) Create(ctx context.Context, capture *domain.Capture) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.m.failCaptureCreate != nil {
		return c.m.failCaptureCreate
	}
	cp := *capture
	c.m.captures[capture.ID] = &cp
	return nil
}

func (c memCaptures) Delete(ctx context.Context, id uuid.UUID) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, ok := c.m.captures[id]; !ok {
		return fmt.Errorf("capture %s: %w", id, domain.ErrNotFound)
	}
	delete(c.m.captures, id)
	return nil
}

func (c memCaptures) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Capture, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	var out []domain.Capture
	for _, capture := range c.m.captures {
		if capture.PaymentID == paymentID {
			out = append(out, *capture)
		}
	}
	return out, nil
}

type memRefunds struct{ m *memStore }

func (r memRefunds) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ref, ok := r.m.refunds[id]
	if !ok {
		return nil, fmt.Errorf("refund %s: %w", id, domain.ErrNotFound)
	}
	out := *ref
	return &out, nil
}

func (r memRefunds) Create(ctx context.Context, ref *domain.Refund) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *ref
	r.m.refunds[ref.ID] = &cp
	return nil
}

func (r memRefunds) Delete(ctx context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.refunds[id]; !ok {
		return fmt.Errorf("refund %s: %w", id, domain.ErrNotFound)
	}
	delete(r.m.refunds, id)
	return nil
}

func (r memRefunds) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.Refund
	for _, ref := range r.m.refunds {
		if ref.PaymentID == paymentID {
			out = append(out, *ref)
		}
	}
	return out, nil
}

type memSessions struct{ m *memStore }

func (s memSessions) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSession, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	sess, ok := s.m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return cloneSession(sess), nil
}

func (s memSessions) ListByCollectionID(ctx context.Context, collectionID uuid.UUID) ([]domain.PaymentSession, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.PaymentSession
	for _, sess := range s.m.sessions {
		if sess.CollectionID == collectionID {
			out = append(out, *cloneSession(sess))
		}
	}
	return out, nil
}

func (s memSessions) Update(ctx context.Context, sess *domain.PaymentSession) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.sessions[sess.ID]; !ok {
		return fmt.Errorf("session %s: %w", sess.ID, domain.ErrNotFound)
	}
	s.m.sessions[sess.ID] = cloneSession(sess)
	return nil
}

type memCollections struct{ m *memStore }

func (c memCollections) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentCollection, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	col, ok := c.m.collections[id]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
	}
	return cloneCollection(col), nil
}

func (c memCollections) Update(ctx context.Context, col *domain.PaymentCollection) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.m.failCollectionUpdate != nil {
		return c.m.failCollectionUpdate
	}
	if _, ok := c.m.collections[col.ID]; !ok {
		return fmt.Errorf("collection %s: %w", col.ID, domain.ErrNotFound)
	}
	c.m.collections[col.ID] = cloneCollection(col)
	return nil
}
