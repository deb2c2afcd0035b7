// Package cron は定期バッチの起動を gocron で管理します。
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockfeed/internal/feature/prices/usecase"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// BatchRunner runs one ingestion batch to completion.
type BatchRunner interface {
	RunBatch(ctx context.Context) (usecase.Summary, error)
}

// Scheduler triggers a daily ingestion batch.
type Scheduler struct {
	cron   *gocron.Scheduler
	runner BatchRunner
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler that runs in UTC.
func NewScheduler(runner BatchRunner, log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		runner: runner,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ScheduleDaily registers the batch at "HH:MM" UTC every day.
func (s *Scheduler) ScheduleDaily(at string) error {
	if _, err := time.Parse("15:04", at); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", at, err)
	}
	// 前回のバッチが終わっていなければ重ねて起動しない
	_, err := s.cron.Every(1).Day().At(at).SingletonMode().Do(s.runOnce)
	if err != nil {
		return fmt.Errorf("schedule daily batch: %w", err)
	}
	return nil
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.StartAsync()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Jobs())))
}

// Stop cancels a running batch and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

// NextRun reports when the next batch will start.
func (s *Scheduler) NextRun() time.Time {
	_, t := s.cron.NextRun()
	return t
}

func (s *Scheduler) runOnce() {
	start := time.Now()
	sum, err := s.runner.RunBatch(s.ctx)
	switch {
	case errors.Is(err, usecase.ErrBatchRunning):
		s.log.Info("scheduled batch skipped; another batch is running")
	case err != nil:
		s.log.Error("scheduled batch failed", zap.Error(err))
	default:
		s.log.Info("scheduled batch finished",
			zap.Int("total", sum.Total),
			zap.Int("succeeded", sum.Succeeded),
			zap.Int("failed", sum.Failed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
