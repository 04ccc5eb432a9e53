package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
	applogger "CoinScope/pkg/logger"
)

// AccuracyTracker owns the accuracy ledger: it records every prediction at
// generation time and later reconciles matured records against the realized
// price. No other component mutates ledger rows.
type AccuracyTracker struct {
	ledger  domrepo.AccuracyLedger
	history domrepo.HistoryStore
	metrics domrepo.Metrics
	log     *applogger.Logger

	recordTimeout  time.Duration
	reconcileBatch int
}

func NewAccuracyTracker(ledger domrepo.AccuracyLedger, history domrepo.HistoryStore, metrics domrepo.Metrics, log *applogger.Logger) *AccuracyTracker {
	return &AccuracyTracker{
		ledger:         ledger,
		history:        history,
		metrics:        metrics,
		log:            log,
		recordTimeout:  5 * time.Second,
		reconcileBatch: 500,
	}
}

// Record appends one pending ledger row for a prediction.
func (t *AccuracyTracker) Record(ctx context.Context, symbol string, h domrepo.Horizon, basePrice, predicted float64, model string, at time.Time) error {
	rec := &models.AccuracyRecord{
		Symbol:         symbol,
		Horizon:        string(h),
		BasePrice:      basePrice,
		PredictedPrice: predicted,
		ModelVersion:   model,
		PredictionTime: at,
		MaturityTime:   at.Add(h.Duration()),
	}
	if err := t.ledger.Insert(ctx, rec); err != nil {
		return fmt.Errorf("insert accuracy record: %w", err)
	}
	return nil
}

// RecordResult records every horizon of a prediction result. Best effort:
// ledger failures are logged, never surfaced to the request path.
func (t *AccuracyTracker) RecordResult(res *models.PredictionResult, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), t.recordTimeout)
	defer cancel()
	for _, hp := range res.Predictions {
		err := t.Record(ctx, res.Symbol, domrepo.Horizon(hp.Horizon), res.CurrentPrice, hp.PredictedPrice, hp.ModelVersion, at)
		if err != nil {
			t.metrics.RecordError("accuracy_record")
			t.log.Warn("accuracy record failed",
				applogger.String("symbol", res.Symbol),
				applogger.String("horizon", hp.Horizon),
				applogger.Error(err))
		}
	}
}

// Reconcile settles matured records with the realized price. Idempotent:
// the ledger update is a compare-and-set on the unreconciled state, so
// re-running over an already-settled record is a no-op. Records whose
// realized price is still unavailable stay pending without error.
func (t *AccuracyTracker) Reconcile(ctx context.Context) (settled int, err error) {
	recs, err := t.ledger.ListMatured(ctx, time.Now().UTC(), t.reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list matured records: %w", err)
	}

	for _, rec := range recs {
		actual, ok, ferr := t.history.GetPriceAt(ctx, rec.Symbol, rec.MaturityTime)
		if ferr != nil {
			t.metrics.RecordError("reconcile_fetch")
			t.log.Warn("reconcile price fetch failed",
				applogger.String("symbol", rec.Symbol), applogger.Error(ferr))
			continue
		}
		if !ok || actual <= 0 {
			// Data gap: the record stays pending indefinitely.
			t.metrics.RecordReconcile("pending")
			continue
		}

		absPct := math.Abs(actual-rec.PredictedPrice) / actual * 100
		hit := (rec.PredictedPrice >= rec.BasePrice) == (actual >= rec.BasePrice)

		updated, serr := t.ledger.Settle(ctx, rec.ID, actual, absPct, hit)
		if serr != nil {
			t.metrics.RecordError("reconcile_settle")
			continue
		}
		if !updated {
			t.metrics.RecordReconcile("already_settled")
			continue
		}
		t.metrics.RecordReconcile("settled")
		settled++
	}
	return settled, nil
}

// History returns ledger rows for the API layer.
func (t *AccuracyTracker) History(ctx context.Context, symbol string, horizon domrepo.Horizon, from, to time.Time, limit int) ([]models.AccuracyRecord, error) {
	return t.ledger.History(ctx, symbol, horizon, from, to, limit)
}
