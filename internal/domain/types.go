// Package domain defines the entities shared by the statement parsers,
// the round-trip matcher and the import store.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// AssetType classifies a position or trade instrument.
// Use ValidateAssetType to ensure validity before use.
type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeOption AssetType = "OPTION"
)

// PutCall identifies the option right.
type PutCall string

const (
	PutCallCall PutCall = "CALL"
	PutCallPut  PutCall = "PUT"
)

// Strategy is the inferred option strategy for a single option trade leg.
type Strategy string

const (
	StrategyLongCall  Strategy = "LONG_CALL"
	StrategyLongPut   Strategy = "LONG_PUT"
	StrategyShortCall Strategy = "SHORT_CALL"
	StrategyShortPut  Strategy = "SHORT_PUT"
	StrategyOther     Strategy = "OTHER"
)

var (
	validAssetTypes = map[AssetType]struct{}{
		AssetTypeStock: {}, AssetTypeOption: {},
	}

	validPutCalls = map[PutCall]struct{}{
		PutCallCall: {}, PutCallPut: {},
	}
)

// ValidateAssetType checks if the asset type is valid
func ValidateAssetType(t AssetType) bool {
	_, ok := validAssetTypes[t]
	return ok
}

// ValidatePutCall checks if the put/call marker is valid
func ValidatePutCall(pc PutCall) bool {
	_, ok := validPutCalls[pc]
	return ok
}

// UnknownAccount is the sentinel account ID used before extraction succeeds.
// A parse whose account ID is still UnknownAccount after all extraction
// attempts is treated as failed.
const UnknownAccount = "UNKNOWN"

// Account holds the identity block of an activity statement.
type Account struct {
	AccountID    string  `json:"accountId"`
	AccountName  string  `json:"accountName"`
	AccountType  string  `json:"accountType"`
	BaseCurrency string  `json:"baseCurrency"`
	Balance      float64 `json:"balance"`
}

// NewAccount returns an account populated with the documented sentinel
// defaults. Extraction overwrites fields with the first non-default value
// it finds.
func NewAccount() Account {
	return Account{
		AccountID:    UnknownAccount,
		AccountName:  UnknownAccount,
		AccountType:  UnknownAccount,
		BaseCurrency: UnknownAccount,
		Balance:      0,
	}
}

// IsIdentified reports whether an account ID was established.
func (a Account) IsIdentified() bool {
	return a.AccountID != UnknownAccount && a.AccountID != ""
}

// Trade is one normalized trade row from a statement.
//
// Sign convention for Quantity:
//
//	Positive = buy/long
//	Negative = sell/short
//
// Parsers must normalize to this convention regardless of source file
// representation.
type Trade struct {
	Symbol        string  `json:"symbol"`
	DateTime      string  `json:"dateTime"`
	Quantity      float64 `json:"quantity"`
	TradePrice    float64 `json:"tradePrice"`
	CommissionFee float64 `json:"commissionFee"`
	AssetCategory string  `json:"assetCategory"`
	RealizedPL    float64 `json:"realizedPL"`
	MtmPL         float64 `json:"mtmPL"`
	TradePL       float64 `json:"tradePL"`
	Currency      string  `json:"currency"`
	Proceeds      float64 `json:"csvProceeds"`
	Basis         float64 `json:"csvBasis"`

	// Multiplier is the contract multiplier as stated by the statement.
	// Zero means unspecified; consumers that need one (the round-trip
	// matcher) substitute the documented default of 100.
	Multiplier float64 `json:"multiplier,omitempty"`

	// Option fields, populated only when the symbol decodes as an option.
	PutCall PutCall   `json:"putCall,omitempty"`
	Strike  float64   `json:"strike,omitempty"`
	Expiry  time.Time `json:"expiry,omitempty"`
}

// IsOption reports whether the trade's asset category marks it as an
// option. The check is case-insensitive and matches both "Equity and Index
// Options" and plain "OPTION" style categories.
func (t Trade) IsOption() bool {
	return strings.Contains(strings.ToUpper(t.AssetCategory), "OPTION")
}

// Position is one open position row from a statement.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	MarketPrice  float64   `json:"marketPrice"`
	MarketValue  float64   `json:"marketValue"`
	AverageCost  float64   `json:"averageCost"`
	UnrealizedPL float64   `json:"unrealizedPL"`
	RealizedPL   float64   `json:"realizedPL"`
	AssetType    AssetType `json:"assetType"`
	Currency     string    `json:"currency"`
	CostBasis    float64   `json:"costBasis"`

	// Populated only when AssetType is AssetTypeOption.
	PutCall PutCall   `json:"putCall,omitempty"`
	Strike  float64   `json:"strike,omitempty"`
	Expiry  time.Time `json:"expiry,omitempty"`
}

// OptionTrade is the option-trade projection of a Trade, with the
// direction-based strategy attached.
type OptionTrade struct {
	Symbol     string    `json:"symbol"`
	DateTime   string    `json:"dateTime"`
	Quantity   float64   `json:"quantity"`
	TradePrice float64   `json:"tradePrice"`
	Strategy   Strategy  `json:"strategy"`
	PutCall    PutCall   `json:"putCall,omitempty"`
	Strike     float64   `json:"strike,omitempty"`
	Expiry     time.Time `json:"expiry,omitempty"`
	Commission float64   `json:"commissionFee"`
	RealizedPL float64   `json:"realizedPL"`
}

// InferStrategy derives the single-leg option strategy from trade
// direction and option right. Unknown combinations (zero quantity,
// missing put/call) map to StrategyOther.
func InferStrategy(quantity float64, pc PutCall) Strategy {
	switch {
	case quantity > 0 && pc == PutCallCall:
		return StrategyLongCall
	case quantity > 0 && pc == PutCallPut:
		return StrategyLongPut
	case quantity < 0 && pc == PutCallCall:
		return StrategyShortCall
	case quantity < 0 && pc == PutCallPut:
		return StrategyShortPut
	default:
		return StrategyOther
	}
}

// DeriveOptionTrades filters trades whose asset category marks them as
// options and maps each into the option-trade shape with a direction-based
// strategy.
func DeriveOptionTrades(trades []Trade) []OptionTrade {
	var optionTrades []OptionTrade
	for _, trade := range trades {
		if !trade.IsOption() {
			continue
		}
		optionTrades = append(optionTrades, OptionTrade{
			Symbol:     trade.Symbol,
			DateTime:   trade.DateTime,
			Quantity:   trade.Quantity,
			TradePrice: trade.TradePrice,
			Strategy:   InferStrategy(trade.Quantity, trade.PutCall),
			PutCall:    trade.PutCall,
			Strike:     trade.Strike,
			Expiry:     trade.Expiry,
			Commission: trade.CommissionFee,
			RealizedPL: trade.RealizedPL,
		})
	}
	return optionTrades
}

// RoundTrip pairs an opening and a closing trade leg for one complete
// position lifecycle. Exactly one open and one close leg; unmatched legs
// stay in the matcher's open remainder and are never synthesized into a
// RoundTrip.
type RoundTrip struct {
	Symbol  string  `json:"symbol"`
	Open    Trade   `json:"open"`
	Close   Trade   `json:"close"`
	GrossPL float64 `json:"grossPL"`
	Fees    float64 `json:"fees"`
	NetPL   float64 `json:"netPL"`
}

// Win reports whether the round trip closed with a positive net P&L.
func (r RoundTrip) Win() bool {
	return r.NetPL > 0
}

// TraceEvent is one structured diagnostics record accumulated during a
// parse. The parser never logs directly; callers decide whether to render
// the trace.
type TraceEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ParseResult is the terminal output of a statement parse. On fatal
// failure all collection fields are empty, Success is false and Errors
// holds a single descriptive message; the parser never propagates an
// exception past its own boundary.
type ParseResult struct {
	Success      bool          `json:"success"`
	Account      Account       `json:"account"`
	Trades       []Trade       `json:"trades"`
	Positions    []Position    `json:"positions"`
	CumulativePL float64       `json:"cumulativePL"`
	OptionTrades []OptionTrade `json:"optionTrades"`
	Errors       []string      `json:"errors"`
	Warnings     []string      `json:"warnings"`
	Trace        []TraceEvent  `json:"trace,omitempty"`
}

// NewParseResult creates an empty, successful result with initialized
// slices so JSON output renders [] instead of null.
func NewParseResult() *ParseResult {
	return &ParseResult{
		Success:      true,
		Account:      NewAccount(),
		Trades:       []Trade{},
		Positions:    []Position{},
		OptionTrades: []OptionTrade{},
		Errors:       []string{},
		Warnings:     []string{},
	}
}

// FailedParseResult builds the single documented hard-failure shape.
func FailedParseResult(format string, args ...any) *ParseResult {
	r := NewParseResult()
	r.Success = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	return r
}

// AddWarning records a degradation that did not abort the parse.
func (r *ParseResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// AddTrace records a structured diagnostics event.
func (r *ParseResult) AddTrace(stage, format string, args ...any) {
	r.Trace = append(r.Trace, TraceEvent{Stage: stage, Message: fmt.Sprintf(format, args...)})
}
