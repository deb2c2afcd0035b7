// Package ratelimiter は外部API呼び出しの頻度を制御するゲートを提供します。
package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// RateLimiterInterface は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	// Wait は次の呼び出しが許可されるまでブロックします。
	// ctx がキャンセルされた場合は待機を中断し ctx.Err() を返します。
	Wait(ctx context.Context) error
}

// Clock は時刻取得と待機を抽象化します。テストでは偽の時計に差し替えます。
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock は実時間の Clock です。
var RealClock Clock = realClock{}

// Gate は連続する呼び出しの間に最小間隔を強制するシングルスロットのゲートです。
// 1つの Gate を共有するすべての呼び出し元に対してグローバルに作用します。
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	clock    Clock
	last     time.Time
	used     bool
}

var _ RateLimiterInterface = (*Gate)(nil)

// NewGate は最小間隔 interval の Gate を生成します。clock が nil の場合は実時間を使います。
func NewGate(interval time.Duration, clock Clock) *Gate {
	if clock == nil {
		clock = RealClock
	}
	return &Gate{interval: interval, clock: clock}
}

// Wait は前回の通過から interval が経過するまで待機し、通過時刻を記録します。
// 待機中はロックを保持するため、同時に通過できる呼び出しは常に1つです。
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.used {
		if sleep := g.interval - g.clock.Now().Sub(g.last); sleep > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-g.clock.After(sleep):
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.last = g.clock.Now()
	g.used = true
	return nil
}

// Interval は設定された最小間隔を返します。
func (g *Gate) Interval() time.Duration {
	return g.interval
}
