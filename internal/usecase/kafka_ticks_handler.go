package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
	pkgkafka "CoinScope/pkg/kafka"
)

// Invalidator evicts cached predictions for a symbol when new historical
// data lands. Satisfied by the prediction engine.
type Invalidator interface {
	Invalidate(symbol string)
}

// KafkaTicksHandler consumes tick messages, persists them into the history
// backend, and invalidates the prediction cache for the affected symbol.
type KafkaTicksHandler struct {
	topic       string
	storage     domrepo.Storage
	invalidator Invalidator
	metrics     domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, storage domrepo.Storage, invalidator Invalidator, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, storage: storage, invalidator: invalidator, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &models.Tick{
		Symbol:    m.Symbol,
		Timestamp: time.Unix(m.T, 0).UTC(),
		Price:     m.C,
		Volume:    m.V,
	})
	h.metrics.RecordLatency("history_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordIngested("clickhouse", m.Symbol)

	// New historical data makes cached predictions for this symbol stale.
	if h.invalidator != nil {
		h.invalidator.Invalidate(m.Symbol)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
