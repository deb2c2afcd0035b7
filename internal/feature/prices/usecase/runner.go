package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// BatchIngester runs one full catalog ingestion.
type BatchIngester interface {
	IngestAll(ctx context.Context, outcomes chan<- Outcome) (Summary, error)
}

// Runner serializes batch runs. At most one batch runs at a time across the
// HTTP trigger and the cron trigger.
type Runner struct {
	ingester BatchIngester
	log      *zap.Logger

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc // 実行中のバックグラウンドバッチ、なければ nil
	wg      sync.WaitGroup
}

// NewRunner は新しい Runner を作成します。
func NewRunner(ingester BatchIngester, log *zap.Logger) *Runner {
	return &Runner{ingester: ingester, log: log}
}

// RunBatch runs a batch synchronously. It returns ErrBatchRunning if another
// batch is in progress.
func (r *Runner) RunBatch(ctx context.Context) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Summary{}, ErrBatchRunning
	}
	defer r.running.Store(false)
	return r.ingester.IngestAll(ctx, nil)
}

// Start runs a batch in the background, detached from ctx's cancellation so
// it outlives the request that triggered it. Stop cancels it.
func (r *Runner) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBatchRunning
	}

	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			cancel()
			r.mu.Lock()
			r.cancel = nil
			r.mu.Unlock()
			// 次の Start が cancel を登録する前に解放する
			r.running.Store(false)
		}()

		if _, err := r.ingester.IngestAll(bctx, nil); err != nil {
			r.log.Error("background ingestion batch failed", zap.Error(err))
		}
	}()
	return nil
}

// Running reports whether a batch is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Stop cancels the background batch, if any, and waits for it to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
