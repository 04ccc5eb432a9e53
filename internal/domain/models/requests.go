package models

// Requests for prediction HTTP endpoints. Defined in domain for consistency and reuse.

type PredictionHTTPRequest struct {
	Symbol            string   `query:"symbol" json:"symbol" validate:"required,min=2,max=12"`
	Horizons          []string `query:"horizons" json:"horizons" default:"[\"1h\",\"4h\",\"24h\",\"7d\"]" validate:"min=1,dive,oneof=1h 4h 24h 7d"`
	IncludeConfidence bool     `query:"include_confidence" json:"include_confidence" default:"true"`
	IncludeFactors    bool     `query:"include_factors" json:"include_factors"`
}

type AccuracyHistoryRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required,min=2,max=12"`
	Horizon string `query:"horizon" json:"horizon" validate:"omitempty,oneof=1h 4h 24h 7d"`
	From    string `query:"from" json:"from"`
	To      string `query:"to" json:"to"`
	Limit   int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=2000"`
}
