// Package entity defines the domain models for the prices feature.
package entity

import "time"

// UpdateEventType is the only event type pushed to live connections.
const UpdateEventType = "update"

// PriceBar is the daily OHLCV summary of one symbol.
// (Symbol, Date) identifies a bar; Date is a calendar day at UTC midnight
// once it has passed through NormalizeDate.
type PriceBar struct {
	Symbol string    // Ticker code (e.g., "AAPL")
	Date   time.Time // Trading day
	Open   float64   // 始値
	High   float64   // 高値
	Low    float64   // 安値
	Close  float64   // 終値
	Volume float64   // 出来高
}

// UpdateEvent is the notification published after a bar is stored.
// It is never persisted.
type UpdateEvent struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Type   string  `json:"type"`
}

// NewUpdateEvent builds the update notification for a stored bar.
// Price is the bar's close.
func NewUpdateEvent(bar PriceBar) UpdateEvent {
	return UpdateEvent{Symbol: bar.Symbol, Price: bar.Close, Type: UpdateEventType}
}

// LatestPrice pairs a symbol with its current bar, the one whose date equals
// the symbol's freshness pointer. Bar is nil until the symbol is first ingested.
type LatestPrice struct {
	Symbol   string
	Name     string
	Currency string
	Bar      *PriceBar
}

// NormalizeDate drops the time-of-day component, keeping the calendar day as
// written in t's own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
