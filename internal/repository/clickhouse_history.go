package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CoinScope/internal/domain/models"
	pkgch "CoinScope/pkg/clickhouse"
	applogger "CoinScope/pkg/logger"
)

// CHHistoryStore implements HistoryStore backed by ClickHouse hourly buckets.
type CHHistoryStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHHistoryStore(ch *pkgch.Client, table string) *CHHistoryStore {
	if table == "" {
		table = "coinscope.price_points_1h"
	}
	return &CHHistoryStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHHistoryStore) SetLogger(l *applogger.Logger) { s.l = l }

// GetSeries returns the n most recent hourly points ordered oldest first.
func (s *CHHistoryStore) GetSeries(ctx context.Context, symbol string, n int) ([]models.PricePoint, error) {
	start := time.Now()
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_series query error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.PricePoint, 0, n)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Timestamp, &p.Symbol, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse get_series scan error",
					applogger.String("table", s.table),
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan point: %w", err)
		}
		tmp = append(tmp, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse get_series ok",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

// priceAtTolerance bounds how far back GetPriceAt may reach. Hourly buckets
// plus one hour of ingest slack; anything older is a data gap.
const priceAtTolerance = 2 * time.Hour

func (s *CHHistoryStore) GetPriceAt(ctx context.Context, symbol string, ts time.Time) (float64, bool, error) {
	const qtpl = `
        SELECT close
        FROM %s
        WHERE symbol = ? AND bucket <= ? AND bucket >= ?
        ORDER BY bucket DESC
        LIMIT 1
    `
	q := fmt.Sprintf(qtpl, s.table)
	var price float64
	err := s.db.QueryRowContext(ctx, q, symbol, ts, ts.Add(-priceAtTolerance)).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse price_at query error",
				applogger.String("table", s.table),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return 0, false, fmt.Errorf("price at: %w", err)
	}
	return price, true, nil
}

func (s *CHHistoryStore) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	const qtpl = `
        SELECT close
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT 1
    `
	q := fmt.Sprintf(qtpl, s.table)
	var price float64
	err := s.db.QueryRowContext(ctx, q, symbol).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no history for %s", symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("latest price: %w", err)
	}
	return price, nil
}
