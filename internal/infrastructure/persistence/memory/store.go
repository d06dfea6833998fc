// Package memory is an in-process implementation of the persistence ports,
// used in development mode and unit tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
)

type paymentRecord struct {
	seq     int64
	payment domain.Payment
}

// tables is one consistent copy of the data. Units of work operate on a
// private clone and swap it in on commit.
type tables struct {
	claims   map[string]domain.Claim
	payments map[string]paymentRecord
	seq      int64
}

func (t *tables) clone() *tables {
	return &tables{
		claims:   maps.Clone(t.claims),
		payments: maps.Clone(t.payments),
		seq:      t.seq,
	}
}

// Store keeps claims and payments in memory. Units of work are serialized,
// so a commit never loses a concurrent write.
type Store struct {
	txMu      sync.Mutex
	mu        sync.RWMutex
	committed *tables
}

var _ application.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{committed: &tables{
		claims:   make(map[string]domain.Claim),
		payments: make(map[string]paymentRecord),
	}}
}

func (s *Store) Claims() application.ClaimRepository {
	return &claimRepository{store: s}
}

func (s *Store) Payments() application.PaymentRepository {
	return &paymentRepository{store: s}
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	tx := s.committed.clone()
	s.mu.RUnlock()

	repos := application.Repositories{
		Claims:   &claimRepository{store: s, tx: tx},
		Payments: &paymentRepository{store: s, tx: tx},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = tx
	s.mu.Unlock()
	return nil
}

// view returns the tables a repository operation works on and the function
// releasing them. Inside a unit of work that is the private copy; outside it
// is the committed state under the store locks.
func (s *Store) view(tx *tables, write bool) (*tables, func()) {
	if tx != nil {
		return tx, func() {}
	}
	if write {
		s.txMu.Lock()
		s.mu.Lock()
		return s.committed, func() {
			s.mu.Unlock()
			s.txMu.Unlock()
		}
	}
	s.mu.RLock()
	return s.committed, s.mu.RUnlock
}
