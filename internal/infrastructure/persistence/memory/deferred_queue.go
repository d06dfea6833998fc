package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
)

// DeferredQueue is an in-process application.DeferredQueue. Its contents are
// lost on restart.
type DeferredQueue struct {
	mu    sync.Mutex
	items map[string]application.DeferredSettlement
}

var _ application.DeferredQueue = (*DeferredQueue)(nil)

func NewDeferredQueue() *DeferredQueue {
	return &DeferredQueue{items: make(map[string]application.DeferredSettlement)}
}

func (q *DeferredQueue) Enqueue(_ context.Context, item application.DeferredSettlement) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[item.ID] = item
	return nil
}

func (q *DeferredQueue) Due(_ context.Context, now time.Time, limit int) ([]application.DeferredSettlement, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []application.DeferredSettlement
	for _, item := range q.items {
		if !item.NextAttemptAt.After(now) {
			due = append(due, item)
		}
	}
	slices.SortFunc(due, func(a, b application.DeferredSettlement) int {
		return a.NextAttemptAt.Compare(b.NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (q *DeferredQueue) Remove(_ context.Context, item application.DeferredSettlement) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, item.ID)
	return nil
}
