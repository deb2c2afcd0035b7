// Package dto defines data transfer objects for the prices HTTP API.
package dto

// BarResponse はバーデータのレスポンスDTOです。
type BarResponse struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`   // 日付 (YYYY-MM-DD)
	Open   float64 `json:"open"`   // 始値
	High   float64 `json:"high"`   // 高値
	Low    float64 `json:"low"`    // 安値
	Close  float64 `json:"close"`  // 終値
	Volume float64 `json:"volume"` // 出来高
}

// LatestPriceResponse は銘柄ごとの最新バーです。未取り込みの銘柄では bar が null です。
type LatestPriceResponse struct {
	Symbol   string       `json:"symbol"`
	Name     string       `json:"name"`
	Currency string       `json:"currency"`
	Bar      *BarResponse `json:"bar"`
}

// IngestResponse は単一銘柄の取り込み結果です。
type IngestResponse struct {
	Bar   BarResponse `json:"bar"`
	Event EventBody   `json:"event"`
}

// EventBody mirrors the live update event.
type EventBody struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Type   string  `json:"type"`
}

// BatchAcceptedResponse is returned when a background batch is started.
type BatchAcceptedResponse struct {
	Status string `json:"status"`
}
