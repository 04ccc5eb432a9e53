package service

import "context"

// SentimentProvider supplies an aggregate sentiment score for a symbol,
// normalized to [-1,1]. ok is false when no score is available; callers treat
// an absent score as neutral.
type SentimentProvider interface {
	GetSentiment(ctx context.Context, symbol string) (score float64, ok bool, err error)
}
