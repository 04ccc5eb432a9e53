package models

import "time"

// PricePoint represents one OHLCV bar of the historical series.
// Points are ordered by timestamp and unique per (symbol, timestamp).
type PricePoint struct {
	Timestamp time.Time
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Tick is a single trade update coming off the live market stream.
// The ingest pipeline aggregates ticks into hourly PricePoints.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}
