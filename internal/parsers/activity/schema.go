package activity

import "strings"

// Statement sections consumed by the extractor.
const (
	sectionAccountInformation = "Account Information"
	sectionStatement          = "Statement"
	sectionTrades             = "Trades"
	sectionPositions          = "Positions"
	sectionNetAssetValue      = "Net Asset Value"
	sectionCashReport         = "Cash Report"
	sectionRealizedSummary    = "Realized & Unrealized Performance Summary"
	sectionMTMSummary         = "Mark-to-Market Performance Summary"
)

// colNone marks a semantic field with no column in a given schema.
const colNone = -1

// tradeSchema maps semantic trade fields to column indexes within a full
// tokenized data row (index 0 is the section name, index 1 the row type).
type tradeSchema struct {
	Discriminator int // must equal "Order" for inclusion
	AssetCategory int
	Currency      int
	Symbol        int
	DateTime      int
	Quantity      int
	TradePrice    int
	Proceeds      int
	CommFee       int
	Basis         int
	RealizedPL    int
	MtmPL         int
}

// tradesSectionSchema matches the IBKR activity statement Trades section:
//
//	Trades,Data,Order,Stocks,USD,AAPL,"2023-06-01, 09:30:00",10,185.50,...,Proceeds,Comm/Fee,Basis,Realized P/L,MTM P/L,Code
var tradesSectionSchema = tradeSchema{
	Discriminator: 2,
	AssetCategory: 3,
	Currency:      4,
	Symbol:        5,
	DateTime:      6,
	Quantity:      7,
	TradePrice:    8,
	Proceeds:      10,
	CommFee:       11,
	Basis:         12,
	RealizedPL:    13,
	MtmPL:         14,
}

// positionSchema maps semantic position fields to column indexes within a
// full tokenized data row. colNone marks fields the section does not carry.
type positionSchema struct {
	AssetCategory int
	Currency      int
	Symbol        int
	Quantity      int
	Multiplier    int
	AverageCost   int
	CostBasis     int
	MarketPrice   int
	MarketValue   int
	UnrealizedPL  int
	RealizedPL    int
}

// positionSource binds a section name to its extraction schema. Sources are
// tried in declaration order; the first section that yields at least one
// position wins.
type positionSource struct {
	Section string
	Schema  positionSchema
}

var positionSources = []positionSource{
	{
		// Custom export layout:
		// Positions,Data,Symbol,Quantity,Market Price,Market Value,Average Cost,Unrealized P/L,Realized P/L,Currency,Cost Basis
		Section: sectionPositions,
		Schema: positionSchema{
			AssetCategory: colNone,
			Symbol:        2,
			Quantity:      3,
			MarketPrice:   4,
			MarketValue:   5,
			AverageCost:   6,
			UnrealizedPL:  7,
			RealizedPL:    8,
			Currency:      9,
			CostBasis:     10,
			Multiplier:    colNone,
		},
	},
	{
		// Open Positions,Data,Summary,Stocks,USD,AAPL,10,1,150.00,1500.00,185.50,1855.00,355.00,
		Section: SectionOpenPositions,
		Schema: positionSchema{
			AssetCategory: 3,
			Currency:      4,
			Symbol:        5,
			Quantity:      6,
			Multiplier:    7,
			AverageCost:   8,
			CostBasis:     9,
			MarketPrice:   10,
			MarketValue:   11,
			UnrealizedPL:  12,
			RealizedPL:    colNone,
		},
	},
	{
		// The realized summary carries no quantity column; it never yields
		// rows on its own and falls through to the mark-to-market variant.
		Section: sectionRealizedSummary,
		Schema: positionSchema{
			AssetCategory: 2,
			Symbol:        3,
			Quantity:      colNone,
			Multiplier:    colNone,
			AverageCost:   colNone,
			CostBasis:     colNone,
			MarketPrice:   colNone,
			MarketValue:   colNone,
			UnrealizedPL:  colNone,
			RealizedPL:    15,
			Currency:      colNone,
		},
	},
	{
		// Mark-to-Market Performance Summary,Data,Stocks,AAPL,0,10,150.00,185.50,355.00,...
		Section: sectionMTMSummary,
		Schema: positionSchema{
			AssetCategory: 2,
			Symbol:        3,
			Quantity:      5,
			MarketPrice:   7,
			UnrealizedPL:  8,
			RealizedPL:    12,
			Multiplier:    colNone,
			AverageCost:   colNone,
			CostBasis:     colNone,
			MarketValue:   colNone,
			Currency:      colNone,
		},
	},
}

// nonPositionSymbols are symbol-column values that mark aggregate or
// category rows rather than positions.
var nonPositionSymbols = map[string]struct{}{
	"Total":                    {},
	"SubTotal":                 {},
	"Stocks":                   {},
	"Equity and Index Options": {},
	"Options":                  {},
	"Forex":                    {},
	"Cash":                     {},
	"Symbol":                   {},
}

func isNonPositionSymbol(symbol string) bool {
	_, ok := nonPositionSymbols[symbol]
	return ok
}

// headerKeywords drive heuristic header-row detection when no registered
// schema matches a section. A row counts as a header when any field
// contains one of these, case-insensitively.
var headerKeywords = []string{
	"symbol", "qty", "quantity", "market", "value", "cost", "unrealized", "realized",
}

// looksLikeHeaderRow reports whether a row contains recognizable position
// header keywords in any field.
func looksLikeHeaderRow(row []string) bool {
	for _, field := range row {
		lower := strings.ToLower(field)
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// schemaFromHeaderRow builds a position schema from a detected header row
// by matching column titles to semantic fields.
func schemaFromHeaderRow(row []string) positionSchema {
	schema := positionSchema{
		AssetCategory: colNone, Currency: colNone, Symbol: colNone,
		Quantity: colNone, Multiplier: colNone, AverageCost: colNone,
		CostBasis: colNone, MarketPrice: colNone, MarketValue: colNone,
		UnrealizedPL: colNone, RealizedPL: colNone,
	}

	for i, field := range row {
		title := strings.ToLower(strings.TrimSpace(field))
		switch {
		case title == "symbol":
			schema.Symbol = i
		case title == "qty" || strings.Contains(title, "quantity"):
			if schema.Quantity == colNone {
				schema.Quantity = i
			}
		case strings.Contains(title, "unrealized"):
			schema.UnrealizedPL = i
		case strings.Contains(title, "realized"):
			schema.RealizedPL = i
		case strings.Contains(title, "cost") && strings.Contains(title, "basis"):
			schema.CostBasis = i
		case strings.Contains(title, "cost"):
			schema.AverageCost = i
		case strings.Contains(title, "market") && strings.Contains(title, "value"):
			schema.MarketValue = i
		case title == "value":
			if schema.MarketValue == colNone {
				schema.MarketValue = i
			}
		case strings.Contains(title, "price"):
			if schema.MarketPrice == colNone {
				schema.MarketPrice = i
			}
		case strings.Contains(title, "currency"):
			schema.Currency = i
		}
	}

	return schema
}
