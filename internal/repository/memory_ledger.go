package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
)

// MemoryLedger is an in-process AccuracyLedger used when no Postgres DSN is
// configured. Records do not survive restarts.
type MemoryLedger struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.AccuracyRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1, rows: make(map[int64]*models.AccuracyRecord)}
}

func (m *MemoryLedger) Insert(_ context.Context, rec *models.AccuracyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.nextID
	m.nextID++
	cp := *rec
	m.rows[cp.ID] = &cp
	return nil
}

func (m *MemoryLedger) ListMatured(_ context.Context, before time.Time, limit int) ([]models.AccuracyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AccuracyRecord
	for _, r := range m.rows {
		if r.ActualPrice == nil && !r.MaturityTime.After(before) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaturityTime.Before(out[j].MaturityTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) Settle(_ context.Context, id int64, actual, absPctErr float64, directionHit bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.ActualPrice != nil {
		return false, nil
	}
	r.ActualPrice = &actual
	r.AbsPctError = &absPctErr
	r.DirectionHit = &directionHit
	return true, nil
}

func (m *MemoryLedger) History(_ context.Context, symbol string, horizon domrepo.Horizon, from, to time.Time, limit int) ([]models.AccuracyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AccuracyRecord
	for _, r := range m.rows {
		if r.Symbol != symbol {
			continue
		}
		if horizon != "" && r.Horizon != string(horizon) {
			continue
		}
		if r.PredictionTime.Before(from) || r.PredictionTime.After(to) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PredictionTime.After(out[j].PredictionTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ domrepo.AccuracyLedger = (*MemoryLedger)(nil)
