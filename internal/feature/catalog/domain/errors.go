// Package domain defines domain-level errors for the catalog feature.
package domain

import "errors"

var (
	// ErrSymbolNotFound indicates that no symbol is registered under the given code.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrSymbolAlreadyExists is returned when registering a code that is already in the catalog.
	ErrSymbolAlreadyExists = errors.New("symbol already exists")

	// ErrSymbolInUse is returned when deleting a symbol that still has price bars.
	ErrSymbolInUse = errors.New("symbol has price bars and cannot be deleted")

	// ErrInvalidSymbol indicates that registration input failed validation.
	ErrInvalidSymbol = errors.New("invalid symbol")
)
