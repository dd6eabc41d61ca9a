// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/metrics"
)

const (
	JobPurgeBlacklist   = "purge_blacklist"
	JobExpireWarranties = "expire_warranties"
)

// WarrantyExpirer is satisfied by the aftersales service.
type WarrantyExpirer interface {
	ExpireWarranties(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func New(log *zap.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cronLogger{log}))),
		log:     log,
		metrics: m,
		timeout: 5 * time.Minute,
	}
}

// Add registers fn under name on a cron schedule such as "@hourly" or "0 3 * * *".
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() { s.Run(name, fn) })
	if err != nil {
		return err
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Run executes one job immediately with the scheduler's timeout.
func (s *Scheduler) Run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	s.metrics.JobRun(name, err)
	if err != nil {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.log.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Start runs the scheduler until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

func PurgeBlacklist(store auth.Store, log *zap.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := store.Purge(ctx, time.Now())
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("revoked tokens purged", zap.Int64("count", n))
		}
		return nil
	}
}

func ExpireWarranties(w WarrantyExpirer) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := w.ExpireWarranties(ctx)
		return err
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ log *zap.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
