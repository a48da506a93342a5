package tracker

import (
	"context"
	"sync"

	"futures_bot/internal/models"
)

// TrackState — то, что переживает циклы (и рестарты, если стор redis).
type TrackState struct {
	PositionID        string           `json:"positionId"`
	Side              models.Direction `json:"side"`
	MaxRoi            *float64         `json:"maxRoi,omitempty"`
	HighestPrice      float64          `json:"highestPrice"`
	LowestPrice       float64          `json:"lowestPrice"`
	TrailingStopPrice *float64         `json:"trailingStopPrice,omitempty"`
	UpdatedAt         int64            `json:"updatedAt"` // unix ms
}

// Store — хранилище состояния трекера по символу.
type Store interface {
	Load(ctx context.Context, symbol string) (TrackState, bool, error)
	Save(ctx context.Context, symbol string, st TrackState) error
	Delete(ctx context.Context, symbol string) error
}

// MemoryStore — стор в памяти процесса.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]TrackState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]TrackState)}
}

func (s *MemoryStore) Load(_ context.Context, symbol string) (TrackState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[symbol]
	return st, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, symbol string, st TrackState) error {
	s.mu.Lock()
	s.m[symbol] = st
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, symbol string) error {
	s.mu.Lock()
	delete(s.m, symbol)
	s.mu.Unlock()
	return nil
}
