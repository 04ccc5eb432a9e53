package models

import "time"

// ConfidenceInterval is a probabilistic price band around a point forecast.
type ConfidenceInterval struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"` // (0,1]
}

// Probability holds the directional probability split. Up + Down == 1.
type Probability struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// Factor is one named signal that contributed to the directional probability.
// Impact is always within [-1,1].
type Factor struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"`
}

// HorizonPrediction is the forecast for a single lookahead horizon.
type HorizonPrediction struct {
	Horizon            string              `json:"horizon"`
	PredictedPrice     float64             `json:"predicted_price"`
	ConfidenceInterval *ConfidenceInterval `json:"confidence_interval,omitempty"`
	Probability        Probability         `json:"probability"`
	Factors            []Factor            `json:"factors,omitempty"`
	ModelVersion       string              `json:"model_version"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

// PredictionResult is the per-request response: one HorizonPrediction per
// requested horizon, in request order.
type PredictionResult struct {
	Symbol       string              `json:"symbol"`
	CurrentPrice float64             `json:"current_price"`
	Predictions  []HorizonPrediction `json:"predictions"`

	// Stale marks a cached result served past its TTL because live
	// recomputation failed.
	Stale bool `json:"stale,omitempty"`
	// Degraded lists the degradations absorbed while producing this result
	// (upstream timeouts, cache bypass, fallback model use).
	Degraded []string `json:"degraded,omitempty"`
}

// AccuracyRecord is one row of the append-only accuracy ledger. ActualPrice
// and the error metrics stay nil until the horizon matures and the realized
// price is reconciled.
type AccuracyRecord struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Horizon        string    `json:"horizon"`
	BasePrice      float64   `json:"base_price"`
	PredictedPrice float64   `json:"predicted_price"`
	ActualPrice    *float64  `json:"actual_price,omitempty"`
	AbsPctError    *float64  `json:"abs_pct_error,omitempty"`
	DirectionHit   *bool     `json:"direction_hit,omitempty"`
	ModelVersion   string    `json:"model_version"`
	PredictionTime time.Time `json:"prediction_time"`
	MaturityTime   time.Time `json:"maturity_time"`
}

// Settled reports whether the record has been reconciled with a realized price.
func (r *AccuracyRecord) Settled() bool { return r.ActualPrice != nil }
