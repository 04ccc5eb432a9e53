package di

import (
	"context"
	"fmt"
	"time"

	"CoinScope/internal/domain/repository"
	domsvc "CoinScope/internal/domain/service"
	"CoinScope/internal/handler/api"
	mid "CoinScope/internal/middleware"
	internalrepo "CoinScope/internal/repository"
	"CoinScope/internal/service/binance"
	icache "CoinScope/internal/service/cache"
	"CoinScope/internal/services/insights"
	"CoinScope/internal/usecase"
	pkgcache "CoinScope/pkg/cache"
	pkgch "CoinScope/pkg/clickhouse"
	"CoinScope/pkg/config"
	pkgkafka "CoinScope/pkg/kafka"
	applogger "CoinScope/pkg/logger"
	"CoinScope/pkg/metrics"
	"CoinScope/pkg/queue"
	"CoinScope/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema: raw ticks plus the hourly OHLCV rollup the
	// prediction engine reads.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS coinscope",
		`CREATE TABLE IF NOT EXISTS coinscope.rt_ticks_raw (
            ts DateTime, symbol String, price Float64, volume Float64,
            source String, event_id String, seq UInt64
        ) ENGINE=MergeTree ORDER BY (symbol, ts)`,
		`CREATE TABLE IF NOT EXISTS coinscope.price_points_1h (
            bucket DateTime, symbol String,
            open Float64, high Float64, low Float64, close Float64, vol Float64
        ) ENGINE=ReplacingMergeTree ORDER BY (symbol, bucket)`,
		`CREATE MATERIALIZED VIEW IF NOT EXISTS coinscope.price_points_1h_mv
            TO coinscope.price_points_1h AS
            SELECT toStartOfHour(ts) AS bucket, symbol,
                   argMin(price, ts) AS open, max(price) AS high,
                   min(price) AS low, argMax(price, ts) AS close,
                   sum(volume) AS vol
            FROM coinscope.rt_ticks_raw
            GROUP BY bucket, symbol`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTickStorage creates ClickHouse storage repository.
func ProvideTickStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	table := cfg.ClickHouse.TicksTable
	if table == "" {
		table = cfg.ClickHouse.Database + ".rt_ticks_raw"
	}
	return internalrepo.NewClickHouseStorage(chClient.DB(), table)
}

// ProvideTickPublisher creates Kafka publisher repository.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideBinanceStream creates the Binance WebSocket stream.
func ProvideBinanceStream(cfg *config.Config) repository.MarketStream {
	return binance.New(
		cfg.Binance.WebSocketURL,
		cfg.Binance.Symbols,
		cfg.Binance.ReconnectDelay,
		cfg.Binance.PingInterval,
	)
}

// ProvideTickProcessor creates the tick processor use case.
func ProvideTickProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(pub, store, metrics, cfg.Backend.Type)
}

// ProvideTickCollector creates the tick collector use case.
func ProvideTickCollector(
	stream repository.MarketStream,
	processor *usecase.TickProcessor,
	metrics repository.Metrics,
) *usecase.TickCollector {
	// Middleware pipeline between WebSocket and the storage backend
	pipe := mid.NewIngestPipeline(processor, metrics,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(stream, processor, metrics, pipe)
}

// ProvideSharedRedis creates the shared Redis client, or nil when disabled.
func ProvideSharedRedis(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideResultStore picks the result cache backing store: Redis when
// configured so cached predictions survive restarts, in-process otherwise.
func ProvideResultStore(shared *pkgcache.RedisCache) icache.BytesCache {
	if shared != nil {
		return icache.NewRedisCacheFromClient(shared.Client())
	}
	return icache.NewTTLCache()
}

// ProvideResultCache creates the prediction result cache.
func ProvideResultCache(store icache.BytesCache, cfg *config.Config, l *applogger.Logger) *icache.ResultCache {
	return icache.NewResultCache(store, cfg.Predict.CacheTTL, cfg.Predict.StaleRetention, l)
}

// ProvideHistoryStore creates the ClickHouse history reader.
func ProvideHistoryStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.HistoryStore {
	store := internalrepo.NewCHHistoryStore(chClient, cfg.ClickHouse.HistoryTable)
	store.SetLogger(l)
	return store
}

// ProvideAccuracyLedger creates the accuracy ledger: Postgres when a DSN is
// configured, in-memory otherwise.
func ProvideAccuracyLedger(cfg *config.Config, l *applogger.Logger) (repository.AccuracyLedger, error) {
	if cfg.Ledger.PostgresDSN == "" {
		l.Warn("no postgres dsn configured, accuracy ledger is in-memory")
		return internalrepo.NewMemoryLedger(), nil
	}
	return internalrepo.NewPostgresLedger(cfg.Ledger.PostgresDSN, l)
}

// ProvideAccuracyTracker creates the accuracy tracker.
func ProvideAccuracyTracker(
	ledger repository.AccuracyLedger,
	history repository.HistoryStore,
	metrics repository.Metrics,
	l *applogger.Logger,
) *usecase.AccuracyTracker {
	return usecase.NewAccuracyTracker(ledger, history, metrics, l)
}

// ProvideSentimentProvider creates the insights service client.
func ProvideSentimentProvider(cfg *config.Config, shared *pkgcache.RedisCache, l *applogger.Logger) domsvc.SentimentProvider {
	client := insights.New(insights.Config{
		BaseURL:    cfg.Insights.BaseURL,
		Timeout:    cfg.Insights.Timeout,
		MaxRetries: cfg.Insights.MaxRetries,
	}, l)
	if shared != nil {
		client.SetCache(pkgcache.NewLayeredCache(shared), cfg.Insights.CacheTTL)
	}
	return client
}

// ProvidePredictionEngine creates the prediction engine.
func ProvidePredictionEngine(
	history repository.HistoryStore,
	sentiment domsvc.SentimentProvider,
	cache *icache.ResultCache,
	tracker *usecase.AccuracyTracker,
	metrics repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.PredictionEngine {
	return usecase.NewPredictionEngine(history, sentiment, cache, tracker, metrics, l, usecase.EngineConfig{
		CacheTTL:        cfg.Predict.CacheTTL,
		StaleRetention:  cfg.Predict.StaleRetention,
		SeriesWindow:    cfg.Predict.SeriesWindow,
		UpstreamTimeout: cfg.Predict.UpstreamTimeout,
		ComputeTimeout:  cfg.Predict.ComputeTimeout,
		FitWorkers:      cfg.Predict.FitWorkers,
		ReferenceSymbol: cfg.Predict.ReferenceSymbol,
	})
}

// ProvideKafkaTicksHandler registers the handler for the ticks topic.
func ProvideKafkaTicksHandler(
	store repository.Storage,
	engine *usecase.PredictionEngine,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, store, engine, metrics)
}

// ProvideReconcileScheduler wires the reconciliation job. With Redis enabled
// the job runs through the queue; otherwise it runs inline on a ticker.
func ProvideReconcileScheduler(
	shared *pkgcache.RedisCache,
	tracker *usecase.AccuracyTracker,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ReconcileScheduler {
	var q queue.QueueService
	if shared != nil {
		job := usecase.NewReconcileJob(tracker, l)
		rq := queue.NewRedisQueue(l, &queue.QueueConfig{Workers: 1}, shared.Client(), queue.ModeProducerConsumer)
		rq.RegisterJob(job)
		if err := rq.Start(); err != nil {
			l.Warn("reconcile queue start failed, falling back to inline", applogger.Error(err))
		} else {
			q = rq
		}
	}
	return usecase.NewReconcileScheduler(q, tracker, cfg.Predict.ReconcileInterval, l)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	engine *usecase.PredictionEngine,
	tracker *usecase.AccuracyTracker,
) *api.PredictionsEchoHandler {
	return api.NewPredictionsEchoHandler(l, engine, tracker)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	handler *api.PredictionsEchoHandler,
	scheduler *usecase.ReconcileScheduler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient, scheduler)
	app.SetHTTPHandler(handler)
	if collector != nil {
		app.TickProc = collector.Processor()
	}
	return app
}
