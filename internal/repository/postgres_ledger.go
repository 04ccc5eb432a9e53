package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
	applogger "CoinScope/pkg/logger"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS prediction_accuracy (
    id              BIGSERIAL PRIMARY KEY,
    symbol          TEXT NOT NULL,
    horizon         TEXT NOT NULL,
    base_price      DOUBLE PRECISION NOT NULL,
    predicted_price DOUBLE PRECISION NOT NULL,
    actual_price    DOUBLE PRECISION,
    abs_pct_error   DOUBLE PRECISION,
    direction_hit   BOOLEAN,
    model_version   TEXT NOT NULL,
    prediction_time TIMESTAMPTZ NOT NULL,
    maturity_time   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prediction_accuracy_pending
    ON prediction_accuracy (maturity_time) WHERE actual_price IS NULL;
CREATE INDEX IF NOT EXISTS idx_prediction_accuracy_symbol
    ON prediction_accuracy (symbol, horizon, prediction_time);
`

// PostgresLedger implements AccuracyLedger on Postgres. Rows are written once
// at prediction time; Settle is the only mutation and is guarded by
// actual_price IS NULL so concurrent reconcilers cannot double-settle.
type PostgresLedger struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewPostgresLedger(dsn string, l *applogger.Logger) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &PostgresLedger{db: db, l: l}, nil
}

func (p *PostgresLedger) Insert(ctx context.Context, rec *models.AccuracyRecord) error {
	const q = `
        INSERT INTO prediction_accuracy
            (symbol, horizon, base_price, predicted_price, model_version, prediction_time, maturity_time)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	err := p.db.QueryRowContext(ctx, q,
		rec.Symbol, rec.Horizon, rec.BasePrice, rec.PredictedPrice,
		rec.ModelVersion, rec.PredictionTime, rec.MaturityTime,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert ledger row: %w", err)
	}
	return nil
}

func (p *PostgresLedger) ListMatured(ctx context.Context, before time.Time, limit int) ([]models.AccuracyRecord, error) {
	const q = `
        SELECT id, symbol, horizon, base_price, predicted_price, model_version, prediction_time, maturity_time
        FROM prediction_accuracy
        WHERE actual_price IS NULL AND maturity_time <= $1
        ORDER BY maturity_time ASC
        LIMIT $2
    `
	rows, err := p.db.QueryContext(ctx, q, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list matured: %w", err)
	}
	defer rows.Close()

	var out []models.AccuracyRecord
	for rows.Next() {
		var r models.AccuracyRecord
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Horizon, &r.BasePrice, &r.PredictedPrice,
			&r.ModelVersion, &r.PredictionTime, &r.MaturityTime); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresLedger) Settle(ctx context.Context, id int64, actual, absPctErr float64, directionHit bool) (bool, error) {
	const q = `
        UPDATE prediction_accuracy
        SET actual_price = $2, abs_pct_error = $3, direction_hit = $4
        WHERE id = $1 AND actual_price IS NULL
    `
	res, err := p.db.ExecContext(ctx, q, id, actual, absPctErr, directionHit)
	if err != nil {
		return false, fmt.Errorf("settle ledger row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("settle rows affected: %w", err)
	}
	return n == 1, nil
}

func (p *PostgresLedger) History(ctx context.Context, symbol string, horizon domrepo.Horizon, from, to time.Time, limit int) ([]models.AccuracyRecord, error) {
	const q = `
        SELECT id, symbol, horizon, base_price, predicted_price, actual_price, abs_pct_error, direction_hit,
               model_version, prediction_time, maturity_time
        FROM prediction_accuracy
        WHERE symbol = $1 AND ($2 = '' OR horizon = $2)
          AND prediction_time >= $3 AND prediction_time <= $4
        ORDER BY prediction_time DESC
        LIMIT $5
    `
	rows, err := p.db.QueryContext(ctx, q, symbol, string(horizon), from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	defer rows.Close()

	var out []models.AccuracyRecord
	for rows.Next() {
		var r models.AccuracyRecord
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Horizon, &r.BasePrice, &r.PredictedPrice,
			&r.ActualPrice, &r.AbsPctError, &r.DirectionHit,
			&r.ModelVersion, &r.PredictionTime, &r.MaturityTime); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresLedger) Close() error { return p.db.Close() }

var _ domrepo.AccuracyLedger = (*PostgresLedger)(nil)
