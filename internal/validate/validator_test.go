package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/output"
)

func validReport() *output.Report {
	report := output.NewReport()
	report.Accounts = []domain.Account{{
		AccountID:    "U1234567",
		AccountName:  "Jane Trader",
		BaseCurrency: "USD",
	}}
	report.Trades = []domain.Trade{
		{Symbol: "AAPL", DateTime: "2024-01-10, 12:00:00", Quantity: 10, TradePrice: 185.5},
		{Symbol: "AAPL", DateTime: "2024-01-20, 12:00:00", Quantity: -10, TradePrice: 190, RealizedPL: 43, TradePL: 43},
	}
	report.Positions = []domain.Position{
		{Symbol: "MSFT", AssetType: domain.AssetTypeStock, Quantity: 5},
	}
	return report
}

func TestValidateReport_CleanReport(t *testing.T) {
	result := ValidateReport(validReport())
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateReport_UnidentifiedAccount(t *testing.T) {
	report := validReport()
	report.Accounts[0].AccountID = domain.UnknownAccount

	result := ValidateReport(report)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "account", result.Errors[0].Entity)
}

func TestValidateReport_DuplicateAccounts(t *testing.T) {
	report := validReport()
	report.Accounts = append(report.Accounts, report.Accounts[0])

	result := ValidateReport(report)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "duplicate")
}

func TestValidateReport_TradeChecks(t *testing.T) {
	report := validReport()
	report.Trades = append(report.Trades,
		domain.Trade{Symbol: "", Quantity: 1},                                  // error
		domain.Trade{Symbol: "TSLA", Quantity: 1, RealizedPL: 5, TradePL: 0},   // error: P&L mismatch
		domain.Trade{Symbol: "NVDA", Quantity: 0},                              // warning
		domain.Trade{Symbol: "AMD", Quantity: 1, PutCall: domain.PutCall("X")}, // error: bad enum
	)

	result := ValidateReport(report)
	assert.Len(t, result.Errors, 3)
	require.NotEmpty(t, result.Warnings)
}

func TestValidateReport_DuplicateTradeWarning(t *testing.T) {
	report := validReport()
	report.Trades = append(report.Trades, report.Trades[0])

	result := ValidateReport(report)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "duplicate")
}

func TestValidateReport_OptionTradeWithoutParsedTrade(t *testing.T) {
	report := validReport()
	report.OptionTrades = []domain.OptionTrade{
		{Symbol: "GHOST 240119C00100000", PutCall: domain.PutCallCall, Strike: 100},
	}

	result := ValidateReport(report)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "optionTrade", result.Warnings[0].Entity)
}

func TestValidateReport_RoundTripChecks(t *testing.T) {
	report := validReport()
	report.RoundTrips = []domain.RoundTrip{
		{
			Symbol:  "AAPL",
			Open:    domain.Trade{Symbol: "AAPL", Quantity: 10},
			Close:   domain.Trade{Symbol: "AAPL", Quantity: -10},
			GrossPL: 4500, Fees: 2, NetPL: 4498,
		},
		{
			// Same-direction legs and inconsistent net P&L.
			Symbol:  "MSFT",
			Open:    domain.Trade{Symbol: "MSFT", Quantity: 5},
			Close:   domain.Trade{Symbol: "MSFT", Quantity: 5},
			GrossPL: 100, Fees: 1, NetPL: 50,
		},
	}

	result := ValidateReport(report)
	assert.Len(t, result.Errors, 2)
}

func TestValidateReport_PositionChecks(t *testing.T) {
	report := validReport()
	report.Positions = append(report.Positions,
		domain.Position{Symbol: "", Quantity: 1},
		domain.Position{Symbol: "AAPL", AssetType: domain.AssetType("BOND"), Quantity: 1},
	)

	result := ValidateReport(report)
	assert.Len(t, result.Errors, 2)
}
