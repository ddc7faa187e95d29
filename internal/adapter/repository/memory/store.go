// Package memory provides in-process implementations of the repository ports.
// Write transactions are serialized and see a private copy of the data that is
// published on commit, so readers outside a transaction only observe committed state.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// ErrTxDone is returned when a finished or foreign transaction is used.
var ErrTxDone = errors.New("memory: transaction already finished or not owned by this store")

type state struct {
	accounts     map[string]*domain.Account
	transactions map[string]*domain.Transaction
	outbox       map[string]*domain.OutboxEvent
	audit        []*domain.AuditLog
}

func newState() *state {
	return &state{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		outbox:       make(map[string]*domain.OutboxEvent),
	}
}

// clone copies the indexes. Stored values are never mutated in place, only replaced.
func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[string]*domain.Account, len(s.accounts)),
		transactions: make(map[string]*domain.Transaction, len(s.transactions)),
		outbox:       make(map[string]*domain.OutboxEvent, len(s.outbox)),
		audit:        make([]*domain.AuditLog, len(s.audit)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	copy(c.audit, s.audit)
	return c
}

// Store holds all data for the memory adapter.
type Store struct {
	writer chan struct{}

	mu        sync.RWMutex
	committed *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		writer:    make(chan struct{}, 1),
		committed: newState(),
	}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.writer
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

func (s *Store) publish(next *state) {
	s.mu.Lock()
	s.committed = next
	s.mu.Unlock()
}

// update runs fn as its own short write transaction.
func (s *Store) update(ctx context.Context, fn func(st *state) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	working := s.snapshot().clone()
	if err := fn(working); err != nil {
		return err
	}
	s.publish(working)
	return nil
}

// Tx is a memory write transaction.
type Tx struct {
	store   *Store
	working *state
	done    bool
}

// Commit publishes the transaction's changes.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.publish(t.working)
	t.store.release()
	return nil
}

// Rollback discards the transaction's changes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.working = nil
	t.store.release()
	return nil
}

// TxManager implements usecase.TxManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction, waiting for any other writer to finish.
func (m *TxManager) Begin(ctx context.Context) (usecase.Tx, error) {
	if err := m.store.acquire(ctx); err != nil {
		return nil, err
	}
	return &Tx{store: m.store, working: m.store.snapshot().clone()}, nil
}

func (s *Store) stateFor(tx usecase.Tx) (*state, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s || t.done {
		return nil, ErrTxDone
	}
	return t.working, nil
}
