package activity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

const sampleStatement = `Statement,Header,Field Name,Field Value
Statement,Data,BrokerName,Interactive Brokers
Statement,Data,Title,Activity Statement
Account Information,Header,Field Name,Field Value
Account Information,Data,Name,Jane Trader
Account Information,Data,Account,U1234567
Account Information,Data,Account Type,Individual
Account Information,Data,Base Currency,USD
Net Asset Value,Header,Asset Class,Prior Total,Current Long,Current Short,Current Total,Change
Net Asset Value,Data,Cash,1000,1200,0,1200,200
Net Asset Value,Data,Total,10000,12450.5,0,12450.5,2450.5
Trades,Header,DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,Quantity,T. Price,C. Price,Proceeds,Comm/Fee,Basis,Realized P/L,MTM P/L,Code
Trades,Data,Order,Stocks,USD,AAPL,"2023-06-01, 09:30:00",10,185.50,186.00,-1855,-1,1856,0,5,O
Trades,Data,Order,Stocks,USD,AAPL,"2023-06-05, 10:00:00",-10,190.00,190.00,1900,-1,-1856,43,0,C
Trades,Data,Order,Equity and Index Options,USD,AAPL 230616C00185000,"2023-06-02, 11:00:00",1,2.50,2.60,-250,-0.65,250.65,0,10,O
Trades,SubTotal,,Stocks,USD,AAPL,,0,,,45,-2,0,43,5,
Open Positions,Header,DataDiscriminator,Asset Category,Currency,Symbol,Quantity,Mult,Cost Price,Cost Basis,Close Price,Value,Unrealized P/L,Code
Open Positions,Data,Summary,Equity and Index Options,USD,AAPL 230616C00185000,1,100,2.50,250.65,2.80,280,29.35,
Open Positions,Total,,,USD,,,,,250.65,,280,29.35,
Realized & Unrealized Performance Summary,Header,Asset Category,Symbol,Cost Adj.,Realized Total
Realized & Unrealized Performance Summary,Data,Stocks,AAPL,0,43
Realized & Unrealized Performance Summary,Data,Total,,,,,,,,,,,,,43.256789
`

func TestParseStatement_FullStatement(t *testing.T) {
	result := NewParser().ParseStatement(sampleStatement)

	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	// Account block
	assert.Equal(t, "U1234567", result.Account.AccountID)
	assert.Equal(t, "Jane Trader", result.Account.AccountName)
	assert.Equal(t, "Individual", result.Account.AccountType)
	assert.Equal(t, "USD", result.Account.BaseCurrency)
	assert.Equal(t, 12450.5, result.Account.Balance)

	// Trades: only the three Order rows, SubTotal excluded
	require.Len(t, result.Trades, 3)
	first := result.Trades[0]
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, "2023-06-01, 09:30:00", first.DateTime)
	assert.Equal(t, 10.0, first.Quantity)
	assert.Equal(t, 185.5, first.TradePrice)
	assert.Equal(t, -1.0, first.CommissionFee)
	assert.Equal(t, first.RealizedPL, first.TradePL)

	closing := result.Trades[1]
	assert.Equal(t, -10.0, closing.Quantity)
	assert.Equal(t, 43.0, closing.RealizedPL)
	assert.Equal(t, 43.0, closing.TradePL)

	option := result.Trades[2]
	assert.Equal(t, domain.PutCallCall, option.PutCall)
	assert.Equal(t, 185.0, option.Strike)
	assert.Equal(t, time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC), option.Expiry)

	// Positions from Open Positions
	require.Len(t, result.Positions, 1)
	pos := result.Positions[0]
	assert.Equal(t, "AAPL 230616C00185000", pos.Symbol)
	assert.Equal(t, domain.AssetTypeOption, pos.AssetType)
	assert.Equal(t, 1.0, pos.Quantity)
	assert.Equal(t, 2.5, pos.AverageCost)
	assert.Equal(t, 250.65, pos.CostBasis)
	assert.Equal(t, 2.8, pos.MarketPrice)
	assert.Equal(t, 280.0, pos.MarketValue)
	assert.Equal(t, 29.35, pos.UnrealizedPL)
	assert.Equal(t, 185.0, pos.Strike)

	// Cumulative P&L from the performance summary Total row, field 15
	assert.Equal(t, 43.256789, result.CumulativePL)

	// Option trades derived from asset category
	require.Len(t, result.OptionTrades, 1)
	assert.Equal(t, domain.StrategyLongCall, result.OptionTrades[0].Strategy)
	assert.Equal(t, 185.0, result.OptionTrades[0].Strike)
}

func TestParseStatement_NoAccountIsFatal(t *testing.T) {
	text := `Trades,Header,DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,Quantity,T. Price,C. Price,Proceeds,Comm/Fee,Basis,Realized P/L,MTM P/L,Code
Trades,Data,Order,Stocks,USD,AAPL,"2023-06-01, 09:30:00",10,185.50,186.00,-1855,-1,1856,0,5,O
`
	result := NewParser().ParseStatement(text)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "account")
	assert.Empty(t, result.Trades)
	assert.Empty(t, result.Positions)
	assert.Empty(t, result.OptionTrades)
}

func TestParseStatement_MissingTradesDegrades(t *testing.T) {
	text := `Account Information,Header,Field Name,Field Value
Account Information,Data,Account,U7654321
`
	result := NewParser().ParseStatement(text)

	require.True(t, result.Success)
	assert.Empty(t, result.Trades)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, "U7654321", result.Account.AccountID)
	assert.Equal(t, 0.0, result.CumulativePL)
}

func TestParseStatement_HeuristicPositionFallback(t *testing.T) {
	text := `Account Information,Header,Field Name,Field Value
Account Information,Data,Account,U1111111
Portfolio,Header,Table
Portfolio,Data,Symbol,Qty,Market Value,Cost,Unrealized
Portfolio,Data,AAPL,10,1855.0,1500.0,355.0
Portfolio,Data,Total,10,1855.0,1500.0,355.0
`
	result := NewParser().ParseStatement(text)

	require.True(t, result.Success)
	require.Len(t, result.Positions, 1)
	pos := result.Positions[0]
	assert.Equal(t, "AAPL", pos.Symbol)
	assert.Equal(t, 10.0, pos.Quantity)
	assert.Equal(t, 1855.0, pos.MarketValue)
	assert.Equal(t, 1500.0, pos.AverageCost)
	assert.Equal(t, 355.0, pos.UnrealizedPL)
	assert.Equal(t, domain.AssetTypeStock, pos.AssetType)
}

func TestParseStatement_MalformedQuantitySkipsRow(t *testing.T) {
	text := `Account Information,Header,Field Name,Field Value
Account Information,Data,Account,U2222222
Trades,Header,DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,Quantity,T. Price,C. Price,Proceeds,Comm/Fee,Basis,Realized P/L,MTM P/L,Code
Trades,Data,Order,Stocks,USD,AAPL,"2023-06-01, 09:30:00",abc,185.50,186.00,-1855,-1,1856,0,5,O
Trades,Data,Order,Stocks,USD,MSFT,"2023-06-01, 09:30:00",5,310.00,311.00,-1550,-1,1551,0,5,O
`
	result := NewParser().ParseStatement(text)

	require.True(t, result.Success)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "MSFT", result.Trades[0].Symbol)
}

// Thirty identical-shape option trades with the cumulative P&L read from
// the performance summary Total row, exact to 6 decimal places.
func TestParseStatement_ManyOptionTrades(t *testing.T) {
	var b strings.Builder
	b.WriteString("Account Information,Header,Field Name,Field Value\n")
	b.WriteString("Account Information,Data,Account,U3333333\n")
	b.WriteString("Trades,Header,DataDiscriminator,Asset Category,Currency,Symbol,Date/Time,Quantity,T. Price,C. Price,Proceeds,Comm/Fee,Basis,Realized P/L,MTM P/L,Code\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "Trades,Data,Order,Equity and Index Options,USD,SPY 240119P00420500,\"2024-01-%02d, 10:00:00\",1,2.50,2.60,-250,-0.65,250.65,1.25,0,O\n", i%28+1)
	}
	b.WriteString("Realized & Unrealized Performance Summary,Header,Asset Category,Symbol\n")
	b.WriteString("Realized & Unrealized Performance Summary,Data,Total,,,,,,,,,,,,,37.512346\n")

	result := NewParser().ParseStatement(b.String())

	require.True(t, result.Success)
	assert.Len(t, result.Trades, 30)
	assert.Len(t, result.OptionTrades, 30)
	for _, ot := range result.OptionTrades {
		assert.Equal(t, domain.StrategyLongPut, ot.Strategy)
		assert.Equal(t, 420.5, ot.Strike)
	}
	assert.Equal(t, 37.512346, result.CumulativePL)
}

func TestCanParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name   string
		path   string
		header string
		want   bool
	}{
		{"activity header line", "statement.csv", "Statement,Header,Field Name,Field Value\n", true},
		{"data first line", "statement.csv", "Trades,Data,Order,Stocks\n", true},
		{"wrong extension", "statement.txt", "Statement,Header,Field Name,Field Value\n", false},
		{"plain csv without row type", "other.csv", "Date,Amount,Description\n", false},
		{"empty header", "statement.csv", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CanParse(tt.path, []byte(tt.header)))
		})
	}
}

func TestParse_ReaderAndContext(t *testing.T) {
	p := NewParser()

	result, err := p.Parse(context.Background(), strings.NewReader(sampleStatement), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Parse(ctx, strings.NewReader(sampleStatement), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
