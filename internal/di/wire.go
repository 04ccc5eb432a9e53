//go:build wireinject
// +build wireinject

package di

import (
	"CoinScope/pkg/config"
	"CoinScope/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideSharedRedis,

		// Repositories
		ProvideTickStorage,
		ProvideTickPublisher,
		ProvideBinanceStream,
		ProvideHistoryStore,
		ProvideAccuracyLedger,

		// Prediction engine
		ProvideResultStore,
		ProvideResultCache,
		ProvideSentimentProvider,
		ProvideAccuracyTracker,
		ProvidePredictionEngine,
		ProvideReconcileScheduler,

		// Ingestion use cases
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
