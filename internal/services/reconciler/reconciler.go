// Package reconciler периодически доводит до конечного состояния трансформации,
// которые клиент перестал опрашивать.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/mirage-ghibli/internal/lib/sl"
	"github.com/magabrotheeeer/mirage-ghibli/internal/metrics"
)

// BatchSize — максимум записей за один запуск.
const BatchSize = 50

// Target выполняет сверку.
type Target interface {
	Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// Service запускает сверку по расписанию cron.
type Service struct {
	cron       *cron.Cron
	target     Target
	staleAfter time.Duration
	metrics    *metrics.Metrics
	log        *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New регистрирует задачу сверки с расписанием schedule.
// Пересекающиеся запуски пропускаются.
func New(target Target, schedule string, staleAfter time.Duration, m *metrics.Metrics, log *slog.Logger) (*Service, error) {
	const op = "reconciler.New"

	logger := cronLogger{log: log}
	s := &Service{
		cron:       cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		target:     target,
		staleAfter: staleAfter,
		metrics:    m,
		log:        log,
		ctx:        context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(s.context()) }); err != nil {
		return nil, fmt.Errorf("%s: invalid schedule %q: %w", op, schedule, err)
	}
	return s, nil
}

func (s *Service) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start запускает планировщик. ctx передается в каждый запуск.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("reconciler started", slog.Duration("stale_after", s.staleAfter))
}

// Stop останавливает планировщик и ждет завершения текущего запуска.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce выполняет одну сверку.
func (s *Service) RunOnce(ctx context.Context) {
	start := time.Now()
	n, err := s.target.Reconcile(ctx, s.staleAfter, BatchSize)
	if err != nil {
		s.metrics.ReconcileRun("error")
		s.log.Error("reconcile run failed", sl.Err(err))
		return
	}
	s.metrics.ReconcileRun("ok")
	if n > 0 {
		s.log.Info("stale transformations finalized", slog.Int("count", n), slog.Duration("took", time.Since(start)))
	}
}

// cronLogger направляет журнал cron в slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append([]any{sl.Err(err)}, keysAndValues...)...)
}
