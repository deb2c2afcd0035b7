// Package dto defines data transfer objects for the catalog HTTP API.
package dto

// SymbolItem represents a symbol in the API response.
type SymbolItem struct {
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	Exchange          string  `json:"exchange"`
	Country           string  `json:"country"`
	Currency          string  `json:"currency"`
	Type              string  `json:"type"`
	LastRefreshedDate *string `json:"last_refreshed_date"`
}

// RegisterSymbolRequest is the body of POST /symbols.
type RegisterSymbolRequest struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Exchange string `json:"exchange" binding:"required"`
	Country  string `json:"country" binding:"required"`
	Currency string `json:"currency" binding:"required"`
	Type     string `json:"type" binding:"required"`
}

// RegisterSymbolResponse is returned after registration.
// RefreshError is set when the initial ingestion failed.
type RegisterSymbolResponse struct {
	Symbol       SymbolItem `json:"symbol"`
	Refreshed    bool       `json:"refreshed"`
	RefreshError string     `json:"refresh_error,omitempty"`
}
