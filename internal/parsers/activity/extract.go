package activity

import (
	"math"
	"strconv"
	"strings"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

// field returns the column at idx, or "" when the schema has no column
// (colNone) or the row is too short.
func field(row []string, idx int) string {
	if idx == colNone || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseNumber parses a statement numeric field permissively. Thousands
// separators are stripped. Returns (0, false) for empty, malformed or
// non-finite values; callers decide whether the field was required.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// numberOrZero is parseNumber for fields that are not required for row
// inclusion: malformed values degrade to 0.
func numberOrZero(s string) float64 {
	v, _ := parseNumber(s)
	return v
}

// round6 rounds to 6 decimal places, matching the statement's cumulative
// P&L precision.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// extractAccount fills the result's account block from the
// "Account Information" and "Statement" name/value sections, with override
// priority to the first-found non-default value. The balance is taken from
// the "Net Asset Value" Total row when present, falling back to the
// "Statement" Total row.
func (p *Parser) extractAccount(secs *Sections, result *domain.ParseResult) {
	acc := &result.Account

	for _, section := range []string{sectionAccountInformation, sectionStatement} {
		rows, ok := secs.Rows(section)
		if !ok {
			continue
		}
		for _, row := range rows {
			if len(row) < 4 {
				continue
			}
			key, value := row[2], row[3]
			if value == "" {
				continue
			}
			switch key {
			case "Account", "Account ID", "Account Number":
				if acc.AccountID == domain.UnknownAccount {
					acc.AccountID = value
				}
			case "Name", "Account Name":
				if acc.AccountName == domain.UnknownAccount {
					acc.AccountName = value
				}
			case "Account Type":
				if acc.AccountType == domain.UnknownAccount {
					acc.AccountType = value
				}
			case "Base Currency":
				if acc.BaseCurrency == domain.UnknownAccount {
					acc.BaseCurrency = value
				}
			}
		}
	}

	result.AddTrace("account", "account ID after extraction: %s", acc.AccountID)

	// Balance: Net Asset Value Total row carries the current total in
	// column 6 (Asset Class, Prior Total, Current Long, Current Short,
	// Current Total, Change).
	if rows, ok := secs.Rows(sectionNetAssetValue); ok {
		for _, row := range rows {
			if field(row, 2) != "Total" {
				continue
			}
			if v, ok := parseNumber(field(row, 6)); ok {
				acc.Balance = v
				result.AddTrace("account", "balance %v taken from Net Asset Value Total row", v)
				return
			}
		}
	}

	// Fallback: first numeric field on the Statement section's Total row.
	if rows, ok := secs.Rows(sectionStatement); ok {
		for _, row := range rows {
			if field(row, 2) != "Total" {
				continue
			}
			for i := 3; i < len(row); i++ {
				if v, ok := parseNumber(row[i]); ok {
					acc.Balance = v
					result.AddTrace("account", "balance %v taken from Statement Total row", v)
					return
				}
			}
		}
	}
}

// extractTrades pulls normalized trades out of the Trades section. Only
// rows whose discriminator field literally equals "Order" are included;
// execution and lot detail rows are aggregates of the same fills. TradePL
// is set equal to RealizedPL as a post-processing step for activity
// statements.
func (p *Parser) extractTrades(secs *Sections, result *domain.ParseResult) {
	rows, ok := secs.Rows(sectionTrades)
	if !ok {
		result.AddWarning("statement has no Trades section")
		result.AddTrace("trades", "no Trades section found")
		return
	}

	schema := tradesSectionSchema
	skipped := 0
	for _, row := range rows {
		if field(row, schema.Discriminator) != "Order" {
			continue
		}

		symbol := field(row, schema.Symbol)
		quantity, qOK := parseNumber(field(row, schema.Quantity))
		if symbol == "" || !qOK {
			skipped++
			continue
		}

		trade := domain.Trade{
			Symbol:        symbol,
			DateTime:      field(row, schema.DateTime),
			Quantity:      quantity,
			TradePrice:    numberOrZero(field(row, schema.TradePrice)),
			CommissionFee: numberOrZero(field(row, schema.CommFee)),
			AssetCategory: field(row, schema.AssetCategory),
			RealizedPL:    numberOrZero(field(row, schema.RealizedPL)),
			MtmPL:         numberOrZero(field(row, schema.MtmPL)),
			Currency:      field(row, schema.Currency),
			Proceeds:      numberOrZero(field(row, schema.Proceeds)),
			Basis:         numberOrZero(field(row, schema.Basis)),
		}
		trade.TradePL = trade.RealizedPL

		if trade.IsOption() {
			if details := DecodeOptionSymbol(symbol); details != nil {
				trade.PutCall = details.PutCall
				trade.Strike = details.Strike
				trade.Expiry = details.Expiry
			}
		}

		result.Trades = append(result.Trades, trade)
	}

	result.AddTrace("trades", "extracted %d trades (%d rows skipped)", len(result.Trades), skipped)
}

// extractPositions tries each registered position source in preference
// order (Positions, Open Positions, then the two performance summary
// variants); the first section yielding at least one position wins. When no
// registered schema matches, a heuristic header-row scan is attempted over
// the remaining sections. A statement without positions is a degradation,
// not an error.
func (p *Parser) extractPositions(secs *Sections, result *domain.ParseResult) {
	for _, source := range positionSources {
		rows, ok := secs.Rows(source.Section)
		if !ok {
			continue
		}
		positions := extractPositionsWithSchema(rows, source.Schema)
		if len(positions) > 0 {
			result.Positions = positions
			result.AddTrace("positions", "extracted %d positions from %q", len(positions), source.Section)
			return
		}
	}

	// Heuristic fallback: look for a header row with recognizable column
	// titles in any section that has no registered schema.
	registered := make(map[string]struct{}, len(positionSources))
	for _, source := range positionSources {
		registered[source.Section] = struct{}{}
	}

	for _, name := range secs.Names() {
		if _, ok := registered[name]; ok {
			continue
		}
		rows, _ := secs.Rows(name)
		headerIdx := -1
		for i, row := range rows {
			if looksLikeHeaderRow(row) {
				headerIdx = i
				break
			}
		}
		if headerIdx == -1 {
			continue
		}
		schema := schemaFromHeaderRow(rows[headerIdx])
		positions := extractPositionsWithSchema(rows[headerIdx+1:], schema)
		if len(positions) > 0 {
			result.Positions = positions
			result.AddTrace("positions", "extracted %d positions from %q via heuristic header detection", len(positions), name)
			return
		}
	}

	result.AddTrace("positions", "no position section matched a schema or heuristic header")
}

// extractPositionsWithSchema applies one column schema to a section's data
// rows. Symbol and quantity are required for inclusion; every other
// malformed numeric degrades to 0. Aggregate rows (Total, SubTotal,
// category names) are excluded.
func extractPositionsWithSchema(rows [][]string, schema positionSchema) []domain.Position {
	var positions []domain.Position

	for _, row := range rows {
		if len(row) < 2 || row[1] != rowTypeData {
			continue
		}

		symbol := field(row, schema.Symbol)
		if symbol == "" || isNonPositionSymbol(symbol) {
			continue
		}
		quantity, ok := parseNumber(field(row, schema.Quantity))
		if !ok {
			continue
		}

		pos := domain.Position{
			Symbol:       symbol,
			Quantity:     quantity,
			MarketPrice:  numberOrZero(field(row, schema.MarketPrice)),
			MarketValue:  numberOrZero(field(row, schema.MarketValue)),
			AverageCost:  numberOrZero(field(row, schema.AverageCost)),
			UnrealizedPL: numberOrZero(field(row, schema.UnrealizedPL)),
			RealizedPL:   numberOrZero(field(row, schema.RealizedPL)),
			CostBasis:    numberOrZero(field(row, schema.CostBasis)),
			Currency:     field(row, schema.Currency),
			AssetType:    domain.AssetTypeStock,
		}

		if details := DecodeOptionSymbol(symbol); details != nil {
			pos.AssetType = domain.AssetTypeOption
			pos.PutCall = details.PutCall
			pos.Strike = details.Strike
			pos.Expiry = details.Expiry
		}

		positions = append(positions, pos)
	}

	return positions
}

// extractCumulativePL scans the whole document (not the section map) for
// the Realized & Unrealized Performance Summary Total row and reads field
// index 15, rounded to 6 decimal places. Absence yields 0.
func (p *Parser) extractCumulativePL(lines [][]string, result *domain.ParseResult) {
	for _, line := range lines {
		if len(line) < 3 {
			continue
		}
		if line[0] != sectionRealizedSummary || line[1] != rowTypeData || line[2] != "Total" {
			continue
		}
		if v, ok := parseNumber(field(line, 15)); ok {
			result.CumulativePL = round6(v)
			result.AddTrace("cumulativePL", "cumulative P&L %v read from performance summary Total row", result.CumulativePL)
			return
		}
	}
	result.AddTrace("cumulativePL", "no performance summary Total row found, cumulative P&L defaults to 0")
}
