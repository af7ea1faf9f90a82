package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/parser"
)

const investmentOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240201120000
<LANGUAGE>ENG
<FI>
<ORG>TESTBROKER
<FID>12345
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<INVSTMTMSGSRSV1>
<INVSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<INVSTMTRS>
<DTASOF>20240131235959
<CURDEF>USD
<INVACCTFROM>
<BROKERID>TESTBROKER
<ACCTID>U7654321
</INVACCTFROM>
<INVTRANLIST>
<DTSTART>20240101000000
<DTEND>20240131235959
<BUYSTOCK>
<INVBUY>
<INVTRAN>
<FITID>T1
<DTTRADE>20240110120000
</INVTRAN>
<SECID>
<UNIQUEID>037833100
<UNIQUEIDTYPE>CUSIP
</SECID>
<UNITS>10
<UNITPRICE>185.50
<COMMISSION>1.00
<TOTAL>-1856.00
<SUBACCTSEC>CASH
<SUBACCTFUND>CASH
</INVBUY>
<BUYTYPE>BUY
</BUYSTOCK>
<SELLSTOCK>
<INVSELL>
<INVTRAN>
<FITID>T2
<DTTRADE>20240120120000
</INVTRAN>
<SECID>
<UNIQUEID>037833100
<UNIQUEIDTYPE>CUSIP
</SECID>
<UNITS>-10
<UNITPRICE>190.00
<COMMISSION>1.00
<TOTAL>1899.00
<GAIN>43.00
<SUBACCTSEC>CASH
<SUBACCTFUND>CASH
</INVSELL>
<SELLTYPE>SELL
</SELLSTOCK>
</INVTRANLIST>
<INVPOSLIST>
<POSSTOCK>
<INVPOS>
<SECID>
<UNIQUEID>594918104
<UNIQUEIDTYPE>CUSIP
</SECID>
<HELDINACCT>CASH
<POSTYPE>LONG
<UNITS>5
<UNITPRICE>310.00
<MKTVAL>1550.00
<DTPRICEASOF>20240131235959
</INVPOS>
</POSSTOCK>
</INVPOSLIST>
<INVBAL>
<AVAILCASH>5000.00
<MARGINBALANCE>0.00
<SHORTBALANCE>0.00
</INVBAL>
</INVSTMTRS>
</INVSTMTTRNRS>
</INVSTMTMSGSRSV1>
<SECLISTMSGSRSV1>
<SECLIST>
<STOCKINFO>
<SECINFO>
<SECID>
<UNIQUEID>037833100
<UNIQUEIDTYPE>CUSIP
</SECID>
<SECNAME>Apple Inc
<TICKER>AAPL
</SECINFO>
</STOCKINFO>
<STOCKINFO>
<SECINFO>
<SECID>
<UNIQUEID>594918104
<UNIQUEIDTYPE>CUSIP
</SECID>
<SECNAME>Microsoft Corp
<TICKER>MSFT
</SECINFO>
</STOCKINFO>
</SECLIST>
</SECLISTMSGSRSV1>
</OFX>`

func TestName(t *testing.T) {
	assert.Equal(t, "ofx-investment", NewParser().Name())
}

func TestCanParse(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		header   string
		expected bool
	}{
		{"OFX file with OFXHEADER marker", "test.ofx", "OFXHEADER:100\nDATA:OFXSGML\n", true},
		{"OFX file with XML header", "test.ofx", "<?xml version=\"1.0\"?><?OFX OFXHEADER=\"200\"?>\n", true},
		{"OFX file with OFX tag", "test.ofx", "<OFX><SIGNONMSGSRSV1>", true},
		{"QFX extension", "test.qfx", "OFXHEADER:100\n", true},
		{"uppercase extension", "test.OFX", "OFXHEADER:100\n", true},
		{"OFX extension without marker", "test.ofx", "This is not OFX content", false},
		{"CSV file", "test.csv", "Date,Description,Amount\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewParser().CanParse(tt.path, []byte(tt.header)))
		})
	}
}

func TestParse_InvestmentStatement(t *testing.T) {
	p := NewParser()
	meta, err := parser.NewMetadata("/statements/interactive_brokers/U7654321/investment.ofx", time.Now())
	require.NoError(t, err)

	result, err := p.Parse(context.Background(), strings.NewReader(investmentOFX), meta)
	require.NoError(t, err)
	require.True(t, result.Success, "errors: %v", result.Errors)

	assert.Equal(t, "U7654321", result.Account.AccountID)
	assert.Equal(t, "TESTBROKER", result.Account.AccountName)
	assert.Equal(t, "investment", result.Account.AccountType)
	assert.Equal(t, "USD", result.Account.BaseCurrency)
	assert.Equal(t, 5000.0, result.Account.Balance)

	require.Len(t, result.Trades, 2)

	buy := result.Trades[0]
	assert.Equal(t, "AAPL", buy.Symbol, "symbol must resolve through the security list")
	assert.Equal(t, 10.0, buy.Quantity)
	assert.Equal(t, 185.5, buy.TradePrice)
	assert.Equal(t, -1.0, buy.CommissionFee)
	assert.Equal(t, "Stocks", buy.AssetCategory)
	assert.Contains(t, buy.DateTime, "2024-01-10")

	sell := result.Trades[1]
	assert.Equal(t, -10.0, sell.Quantity)
	assert.Equal(t, 43.0, sell.RealizedPL)
	assert.Equal(t, sell.RealizedPL, sell.TradePL)

	require.Len(t, result.Positions, 1)
	pos := result.Positions[0]
	assert.Equal(t, "MSFT", pos.Symbol)
	assert.Equal(t, domain.AssetTypeStock, pos.AssetType)
	assert.Equal(t, 5.0, pos.Quantity)
	assert.Equal(t, 1550.0, pos.MarketValue)

	assert.Empty(t, result.OptionTrades)
}

func TestParse_NonInvestmentStatementFails(t *testing.T) {
	// A valid OFX envelope without an investment statement degrades to a
	// failed result, not a transport error.
	bankOnly := strings.Replace(investmentOFX, "INVSTMTMSGSRSV1", "NOSUCHMSGSRSV1", 2)

	result, err := NewParser().Parse(context.Background(), strings.NewReader(bankOnly), nil)
	require.NoError(t, err)
	if result.Success {
		t.Fatal("expected failed result for statement without investment data")
	}
	assert.NotEmpty(t, result.Errors)
}

func TestParse_GarbageContentFailsGracefully(t *testing.T) {
	result, err := NewParser().Parse(context.Background(), strings.NewReader("not ofx at all"), nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
}

func TestParse_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().Parse(ctx, strings.NewReader(investmentOFX), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
