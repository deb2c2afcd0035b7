package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingIngester は release が閉じられるまで戻らない BatchIngester です。
type blockingIngester struct {
	started chan struct{}
	release chan struct{}
	calls   int
}

func newBlockingIngester() *blockingIngester {
	return &blockingIngester{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (b *blockingIngester) IngestAll(ctx context.Context, outcomes chan<- Outcome) (Summary, error) {
	b.calls++
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
	return Summary{Total: 1, Succeeded: 1}, nil
}

func TestRunner_RunBatch(t *testing.T) {
	t.Parallel()

	ing := newBlockingIngester()
	close(ing.release)
	r := NewRunner(ing, zap.NewNop())

	sum, err := r.RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Succeeded: 1}, sum)
	assert.False(t, r.Running())
}

// TestRunner_RejectsConcurrentBatch は実行中に2つ目のバッチが拒否されることを検証します。
func TestRunner_RejectsConcurrentBatch(t *testing.T) {
	t.Parallel()

	ing := newBlockingIngester()
	r := NewRunner(ing, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	<-ing.started
	assert.True(t, r.Running())

	assert.ErrorIs(t, r.Start(context.Background()), ErrBatchRunning)
	_, err := r.RunBatch(context.Background())
	assert.ErrorIs(t, err, ErrBatchRunning)

	close(ing.release)
	r.Stop()
	assert.False(t, r.Running())
	assert.Equal(t, 1, ing.calls)

	// 終了後は再び実行できる
	require.NoError(t, r.Start(context.Background()))
	r.Stop()
	assert.Equal(t, 2, ing.calls)
}

// TestRunner_StartOutlivesRequestContext はリクエストのキャンセルがバックグラウンドバッチを止めないことを検証します。
func TestRunner_StartOutlivesRequestContext(t *testing.T) {
	t.Parallel()

	ing := newBlockingIngester()
	r := NewRunner(ing, zap.NewNop())

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(reqCtx))
	<-ing.started
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, r.Running(), "batch must keep running after the request is cancelled")

	close(ing.release)
	r.Stop()
}

// TestRunner_StopCancelsBatch はStopが実行中のバッチをキャンセルすることを検証します。
func TestRunner_StopCancelsBatch(t *testing.T) {
	t.Parallel()

	ing := newBlockingIngester()
	r := NewRunner(ing, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	<-ing.started

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, r.Running())
}

// TestRunner_ReleasesCancelAfterBatch は完了したバッチの cancel を保持し続けないことを検証します。
func TestRunner_ReleasesCancelAfterBatch(t *testing.T) {
	t.Parallel()

	ing := newBlockingIngester()
	close(ing.release)
	r := NewRunner(ing, zap.NewNop())

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Start(context.Background()))
		require.Eventually(t, func() bool { return !r.Running() }, time.Second, 5*time.Millisecond)

		r.mu.Lock()
		held := r.cancel
		r.mu.Unlock()
		assert.Nil(t, held, "a finished batch must not keep its cancel func")
	}
	r.Stop()
	assert.Equal(t, 3, ing.calls)
}
