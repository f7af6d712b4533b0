package activity

import (
	"context"
	"sync"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// MemoryLog keeps the latest attempts in process. It backs the recent
// activity endpoint when Redis is not configured.
type MemoryLog struct {
	mu       sync.RWMutex
	capacity int
	attempts []*models.TradeAttempt
}

func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryLog{capacity: capacity}
}

func (m *MemoryLog) RecordAttempt(_ context.Context, attempt *models.TradeAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, attempt)
	if over := len(m.attempts) - m.capacity; over > 0 {
		m.attempts = append([]*models.TradeAttempt(nil), m.attempts[over:]...)
	}
	return nil
}

// GetRecentAttempts returns up to limit attempts, newest first.
func (m *MemoryLog) GetRecentAttempts(_ context.Context, limit int64) ([]*models.TradeAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := int64(len(m.attempts))
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*models.TradeAttempt, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.attempts[i])
	}
	return out, nil
}

func (m *MemoryLog) Ping(context.Context) error { return nil }

func (m *MemoryLog) Close() error { return nil }
