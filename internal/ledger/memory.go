package ledger

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/dvloznov/expense-bot/internal/domain"
)

// MemoryRepository keeps transactions in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	seq  int64
	rows []domain.Transaction
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

var _ Repository = (*MemoryRepository)(nil)

// Insert stores a copy of tx.
func (r *MemoryRepository) Insert(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	tx.ID = strconv.FormatInt(r.seq, 10)
	r.rows = append(r.rows, *tx)
	return nil
}

// List returns matching transactions newest first.
func (r *MemoryRepository) List(ctx context.Context, q Query) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Transaction
	for i := len(r.rows) - 1; i >= 0; i-- {
		if q.Matches(r.rows[i]) {
			out = append(out, r.rows[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len returns the number of stored rows.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}
