package repository

import (
	"context"
	"time"

	"CoinScope/internal/domain/models"
)

// HistoryStore provides read access to the historical OHLCV series.
type HistoryStore interface {
	// GetSeries returns up to n most recent hourly points for symbol,
	// ordered oldest first.
	GetSeries(ctx context.Context, symbol string, n int) ([]models.PricePoint, error)
	// GetPriceAt returns the close nearest at-or-before ts. ok is false when
	// no point covers ts (data gap).
	GetPriceAt(ctx context.Context, symbol string, ts time.Time) (price float64, ok bool, err error)
	// LatestPrice returns the most recent close for symbol.
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// AccuracyLedger persists predictions and their eventual realized outcomes.
// Rows are append-only; the single permitted mutation is Settle, which is a
// compare-and-set on the unreconciled state.
type AccuracyLedger interface {
	Insert(ctx context.Context, rec *models.AccuracyRecord) error
	// ListMatured returns unsettled records whose maturity time is at or
	// before the given instant.
	ListMatured(ctx context.Context, before time.Time, limit int) ([]models.AccuracyRecord, error)
	// Settle records the realized price and error metrics. It returns false
	// when the record was already settled (idempotent reconciliation).
	Settle(ctx context.Context, id int64, actual, absPctErr float64, directionHit bool) (bool, error)
	History(ctx context.Context, symbol string, horizon Horizon, from, to time.Time, limit int) ([]models.AccuracyRecord, error)
}

// MarketStream is a live tick feed used by the ingest pipeline.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher forwards ticks to the ingestion transport (Kafka).
type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// Storage persists ingested ticks into the historical store backend.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, t *models.Tick) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Health(ctx context.Context) error // ping
	Close() error
}

// Metrics records engine and ingestion observability signals.
type Metrics interface {
	RecordPrediction(symbol, model string)
	RecordCache(event string) // hit, miss, stale, shared, bypass
	RecordDegraded(kind string)
	RecordReconcile(outcome string) // settled, pending, already_settled
	RecordIngested(backend, symbol string)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
