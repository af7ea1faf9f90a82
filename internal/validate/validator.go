package validate

import (
	"fmt"
	"math"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/output"
)

// ValidationResult contains all validation errors and warnings for a report
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a validation error
type ValidationError struct {
	Entity  string // "account", "trade", "position", "optionTrade", "roundTrip"
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical validation issue
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidateReport performs integrity checks over an import report: entity
// constraints, enum validity, and cross-entity consistency. Returns all
// errors and warnings found rather than stopping at the first.
func ValidateReport(r *output.Report) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	accountIDs := make(map[string]bool)
	tradeSymbols := make(map[string]bool)

	for _, acc := range r.Accounts {
		if acc.AccountID == "" || acc.AccountID == domain.UnknownAccount {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "account",
				ID:      acc.AccountID,
				Field:   "AccountID",
				Value:   acc.AccountID,
				Message: "account is not identified",
			})
			continue
		}
		if accountIDs[acc.AccountID] {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "account",
				ID:      acc.AccountID,
				Field:   "AccountID",
				Value:   acc.AccountID,
				Message: "duplicate account ID",
			})
		}
		accountIDs[acc.AccountID] = true

		if acc.BaseCurrency == "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "account",
				ID:      acc.AccountID,
				Field:   "BaseCurrency",
				Message: "account has no base currency",
			})
		}
	}

	seenTrades := make(map[string]bool)
	for i, trade := range r.Trades {
		id := fmt.Sprintf("trade[%d]", i)

		if trade.Symbol == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "trade",
				ID:      id,
				Field:   "Symbol",
				Message: "trade symbol cannot be empty",
			})
			continue
		}
		tradeSymbols[trade.Symbol] = true

		if trade.Quantity == 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "trade",
				ID:      id,
				Field:   "Quantity",
				Value:   trade.Symbol,
				Message: "trade has zero quantity",
			})
		}

		if trade.TradePL != trade.RealizedPL {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "trade",
				ID:      id,
				Field:   "TradePL",
				Value:   trade.Symbol,
				Message: "trade P&L must equal realized P&L",
			})
		}

		if trade.PutCall != "" && !domain.ValidatePutCall(trade.PutCall) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "trade",
				ID:      id,
				Field:   "PutCall",
				Value:   string(trade.PutCall),
				Message: "invalid put/call value",
			})
		}

		// Duplicate executions should have been filtered by dedup.
		fingerprint := fmt.Sprintf("%s|%s|%v|%v", trade.Symbol, trade.DateTime, trade.Quantity, trade.TradePrice)
		if seenTrades[fingerprint] {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "trade",
				ID:      id,
				Field:   "Fingerprint",
				Value:   trade.Symbol,
				Message: "possible duplicate trade (same symbol, time, quantity, price)",
			})
		}
		seenTrades[fingerprint] = true
	}

	for i, pos := range r.Positions {
		id := fmt.Sprintf("position[%d]", i)

		if pos.Symbol == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "position",
				ID:      id,
				Field:   "Symbol",
				Message: "position symbol cannot be empty",
			})
		}
		if pos.AssetType != "" && !domain.ValidateAssetType(pos.AssetType) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "position",
				ID:      id,
				Field:   "AssetType",
				Value:   string(pos.AssetType),
				Message: "invalid asset type",
			})
		}
		if pos.Quantity == 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "position",
				ID:      id,
				Field:   "Quantity",
				Value:   pos.Symbol,
				Message: "position has zero quantity",
			})
		}
	}

	for i, ot := range r.OptionTrades {
		id := fmt.Sprintf("optionTrade[%d]", i)

		if !tradeSymbols[ot.Symbol] {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "optionTrade",
				ID:      id,
				Field:   "Symbol",
				Value:   ot.Symbol,
				Message: "option trade does not correspond to any parsed trade",
			})
		}
		if ot.PutCall != "" && ot.Strike == 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "optionTrade",
				ID:      id,
				Field:   "Strike",
				Value:   ot.Symbol,
				Message: "option trade has put/call but no strike",
			})
		}
	}

	for i, rt := range r.RoundTrips {
		id := fmt.Sprintf("roundTrip[%d]", i)

		if rt.Open.Quantity == 0 || rt.Close.Quantity == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "roundTrip",
				ID:      id,
				Field:   "Quantity",
				Value:   rt.Symbol,
				Message: "round trip legs must have non-zero quantity",
			})
			continue
		}
		// Open and close legs must oppose each other.
		if rt.Open.Quantity*rt.Close.Quantity > 0 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "roundTrip",
				ID:      id,
				Field:   "Quantity",
				Value:   rt.Symbol,
				Message: "round trip legs must have opposite direction",
			})
		}
		if math.Abs(rt.NetPL-(rt.GrossPL-rt.Fees)) > 1e-6 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "roundTrip",
				ID:      id,
				Field:   "NetPL",
				Value:   rt.Symbol,
				Message: "net P&L must equal gross P&L minus fees",
			})
		}
	}

	return result
}
