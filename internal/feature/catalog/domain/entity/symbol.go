// Package entity defines the domain models for the catalog feature.
package entity

import "time"

// InstrumentType is the kind of tradable instrument a Symbol refers to.
type InstrumentType string

const (
	ClosedEndFund           InstrumentType = "Closed-end Fund"
	CommonStock             InstrumentType = "Common Stock"
	DepositaryReceipt       InstrumentType = "Depositary Receipt"
	ETF                     InstrumentType = "ETF"
	ExchangeTradedNote      InstrumentType = "Exchange-Traded Note"
	GlobalDepositaryReceipt InstrumentType = "Global Depositary Receipt"
	LimitedPartnership      InstrumentType = "Limited Partnership"
	MutualFund              InstrumentType = "Mutual Fund"
	PreferredStock          InstrumentType = "Preferred Stock"
	REIT                    InstrumentType = "REIT"
	Right                   InstrumentType = "Right"
	StructuredProduct       InstrumentType = "Structured Product"
	Trust                   InstrumentType = "Trust"
	Unit                    InstrumentType = "Unit"
	Warrant                 InstrumentType = "Warrant"
)

var instrumentTypes = map[InstrumentType]struct{}{
	ClosedEndFund: {}, CommonStock: {}, DepositaryReceipt: {}, ETF: {}, ExchangeTradedNote: {},
	GlobalDepositaryReceipt: {}, LimitedPartnership: {}, MutualFund: {}, PreferredStock: {},
	REIT: {}, Right: {}, StructuredProduct: {}, Trust: {}, Unit: {}, Warrant: {},
}

// Valid reports whether t is one of the known instrument types.
func (t InstrumentType) Valid() bool {
	_, ok := instrumentTypes[t]
	return ok
}

// Symbol represents a tradable instrument identified by its ticker code.
// LastRefreshedDate is the freshness pointer: the date of the most recently
// ingested price bar, nil until the first ingestion. Only the ingestion write
// path updates it.
type Symbol struct {
	ID                uint           `gorm:"primaryKey"`
	Code              string         `gorm:"size:32;not null;uniqueIndex"`
	Name              string         `gorm:"size:255;not null"`
	Exchange          string         `gorm:"size:100;not null"`
	Country           string         `gorm:"size:100;not null"`
	Currency          string         `gorm:"size:16;not null"`
	Type              InstrumentType `gorm:"size:64;not null"`
	LastRefreshedDate *time.Time     `gorm:"type:date"`
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
}
