package cache

import (
	"fmt"
	"time"
)

// TimeUntilNext は now から次の hh:mm（loc のタイムゾーン）までの期間を返します。
func TimeUntilNext(at string, loc *time.Location, now time.Time) (time.Duration, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", at, err)
	}
	now = now.In(loc)

	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	// 今日の時刻が既に過ぎている場合は翌日を使用
	if !now.Before(next) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now), nil
}
