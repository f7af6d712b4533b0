package pricefeed

import (
	"sort"
	"strings"
	"sync"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

// MemoryStore holds the latest display snapshot per symbol.
type MemoryStore struct {
	mu     sync.RWMutex
	prices map[string]models.PriceSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prices: make(map[string]models.PriceSnapshot)}
}

func (s *MemoryStore) Set(snap models.PriceSnapshot) {
	s.mu.Lock()
	s.prices[strings.ToUpper(snap.Symbol)] = snap
	s.mu.Unlock()
}

func (s *MemoryStore) Get(symbol string) (models.PriceSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.prices[strings.ToUpper(strings.TrimSpace(symbol))]
	return snap, ok
}

// All returns every snapshot sorted by symbol.
func (s *MemoryStore) All() []models.PriceSnapshot {
	s.mu.RLock()
	out := make([]models.PriceSnapshot, 0, len(s.prices))
	for _, snap := range s.prices {
		out = append(out, snap)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
