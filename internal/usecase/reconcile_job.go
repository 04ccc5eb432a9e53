package usecase

import (
	"context"
	"time"

	applogger "CoinScope/pkg/logger"
	"CoinScope/pkg/queue"
)

// ReconcileJob runs accuracy reconciliation as a queue job so the ledger
// settlement work stays off the request-serving path.
type ReconcileJob struct {
	tracker *AccuracyTracker
	log     *applogger.Logger
}

func NewReconcileJob(tracker *AccuracyTracker, log *applogger.Logger) *ReconcileJob {
	return &ReconcileJob{tracker: tracker, log: log}
}

func (j *ReconcileJob) Name() string { return "accuracy-reconcile" }
func (j *ReconcileJob) Type() string { return "accuracy.reconcile" }

func (j *ReconcileJob) Handle(ctx context.Context, _ interface{}) error {
	settled, err := j.tracker.Reconcile(ctx)
	if err != nil {
		return err
	}
	if settled > 0 {
		j.log.Info("accuracy reconciliation pass", applogger.Int("settled", settled))
	}
	return nil
}

var _ queue.Job = (*ReconcileJob)(nil)

// ReconcileScheduler periodically triggers reconciliation, either through the
// job queue or inline when no queue is configured.
type ReconcileScheduler struct {
	q        queue.QueueService
	tracker  *AccuracyTracker
	interval time.Duration
	log      *applogger.Logger
	stopCh   chan struct{}
}

func NewReconcileScheduler(q queue.QueueService, tracker *AccuracyTracker, interval time.Duration, log *applogger.Logger) *ReconcileScheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReconcileScheduler{
		q:        q,
		tracker:  tracker,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

func (s *ReconcileScheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.trigger(ctx)
			}
		}
	}()
}

func (s *ReconcileScheduler) trigger(ctx context.Context) {
	if s.q != nil {
		if err := s.q.PublishMessage(ctx, "accuracy.reconcile", struct{}{}); err != nil {
			s.log.Warn("reconcile enqueue failed", applogger.Error(err))
		}
		return
	}
	if _, err := s.tracker.Reconcile(ctx); err != nil {
		s.log.Warn("inline reconcile failed", applogger.Error(err))
	}
}

func (s *ReconcileScheduler) Stop() { close(s.stopCh) }
