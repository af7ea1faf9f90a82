// Package ofx provides OFX/QFX investment statement parsing.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/parser"
)

// dateTimeLayout matches the date format produced by the CSV activity
// parser so downstream consumers see one representation.
const dateTimeLayout = "2006-01-02, 15:04:05"

// Parser implements OFX/QFX investment parsing with a stateless design.
// Each method operates solely on the input data provided, making the
// parser safe for concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx-investment"
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))

	// OFX header markers cover both v1 SGML and v2 XML formats
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts trades and positions from an OFX/QFX investment statement.
// The returned error covers I/O and context cancellation only; malformed
// statement content degrades into the result's Errors/Warnings.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*domain.ParseResult, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content%s: %w", fileInfo(meta), err)
	}

	// ofxgo.ParseResponse does not support context cancellation, so this
	// check only catches cancellation between read and parse.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return domain.FailedParseResult("failed to parse OFX file%s (%d bytes): %v", fileInfo(meta), len(content), err), nil
	}

	if len(response.InvStmt) == 0 {
		return domain.FailedParseResult("no investment statement found in OFX file%s (creditcard: %d, bank: %d)", fileInfo(meta), len(response.CreditCard), len(response.Bank)), nil
	}

	invStmt, ok := response.InvStmt[0].(*ofxgo.InvStatementResponse)
	if !ok {
		return domain.FailedParseResult("unexpected investment statement type %T", response.InvStmt[0]), nil
	}

	result := domain.NewParseResult()
	result.AddTrace("parse", "OFX investment statement detected")

	securities := indexSecurities(response)

	p.extractAccount(result, response, invStmt, meta)
	if !result.Account.IsIdentified() {
		return domain.FailedParseResult("no account could be identified in the OFX statement"), nil
	}

	p.extractTrades(result, invStmt, securities)
	p.extractPositions(result, invStmt, securities)

	result.OptionTrades = append(result.OptionTrades, domain.DeriveOptionTrades(result.Trades)...)

	return result, nil
}

// fileInfo returns a formatted file path string for error messages
func fileInfo(meta *parser.Metadata) string {
	if meta != nil && meta.FilePath() != "" {
		return fmt.Sprintf(" from %s", meta.FilePath())
	}
	return ""
}

// security carries the resolved identity of one instrument from the OFX
// security list.
type security struct {
	ticker  string
	name    string
	option  bool
	putCall domain.PutCall
	strike  float64
	expiry  time.Time
}

// indexSecurities builds a lookup from security unique ID (usually CUSIP)
// to ticker and option details.
func indexSecurities(resp *ofxgo.Response) map[string]security {
	index := make(map[string]security)

	for _, msg := range resp.SecList {
		list, ok := msg.(*ofxgo.SecurityList)
		if !ok {
			continue
		}
		for _, sec := range list.Securities {
			switch info := sec.(type) {
			case ofxgo.StockInfo:
				index[info.SecInfo.SecID.UniqueID.String()] = security{
					ticker: info.SecInfo.Ticker.String(),
					name:   info.SecInfo.SecName.String(),
				}
			case ofxgo.OptInfo:
				strike, _ := info.StrikePrice.Float64()
				putCall := domain.PutCallCall
				if strings.EqualFold(info.OptType.String(), "PUT") {
					putCall = domain.PutCallPut
				}
				index[info.SecInfo.SecID.UniqueID.String()] = security{
					ticker:  info.SecInfo.Ticker.String(),
					name:    info.SecInfo.SecName.String(),
					option:  true,
					putCall: putCall,
					strike:  strike,
					expiry:  info.DtExpire.Time,
				}
			case ofxgo.MFInfo:
				index[info.SecInfo.SecID.UniqueID.String()] = security{
					ticker: info.SecInfo.Ticker.String(),
					name:   info.SecInfo.SecName.String(),
				}
			case ofxgo.DebtInfo:
				index[info.SecInfo.SecID.UniqueID.String()] = security{
					ticker: info.SecInfo.Ticker.String(),
					name:   info.SecInfo.SecName.String(),
				}
			case ofxgo.OtherInfo:
				index[info.SecInfo.SecID.UniqueID.String()] = security{
					ticker: info.SecInfo.Ticker.String(),
					name:   info.SecInfo.SecName.String(),
				}
			}
		}
	}

	return index
}

// resolveSymbol prefers the ticker from the security list and falls back to
// the raw unique ID so trades are never dropped for a missing SECLIST.
func resolveSymbol(securities map[string]security, id string) (string, security) {
	sec, ok := securities[id]
	if ok && sec.ticker != "" {
		return sec.ticker, sec
	}
	return id, sec
}

func (p *Parser) extractAccount(result *domain.ParseResult, resp *ofxgo.Response, invStmt *ofxgo.InvStatementResponse, meta *parser.Metadata) {
	accountID := invStmt.InvAcctFrom.AcctID.String()
	if accountID == "" {
		if meta != nil && meta.AccountHint() != "" {
			accountID = meta.AccountHint()
			result.AddWarning("account ID missing from statement, using directory hint")
		} else {
			return
		}
	}

	result.Account.AccountID = accountID
	result.Account.AccountType = "investment"
	result.Account.BaseCurrency = invStmt.CurDef.String()

	if org := resp.Signon.Org.String(); org != "" {
		result.Account.AccountName = org
	} else if meta != nil && meta.Broker() != "" {
		result.Account.AccountName = meta.Broker()
	}

	if invStmt.InvBal != nil {
		if cash, exact := invStmt.InvBal.AvailCash.Float64(); exact || cash != 0 {
			result.Account.Balance = cash
		}
	}

	result.AddTrace("account", fmt.Sprintf("identified account %s", accountID))
}

// extractTrades walks the security transactions of the investment
// transaction list. Unsupported transaction kinds degrade into warnings.
func (p *Parser) extractTrades(result *domain.ParseResult, invStmt *ofxgo.InvStatementResponse, securities map[string]security) {
	if invStmt.InvTranList == nil {
		result.AddWarning("no transaction list in investment statement")
		return
	}

	for _, invTran := range invStmt.InvTranList.InvTransactions {
		switch tran := invTran.(type) {
		case ofxgo.BuyStock:
			result.Trades = append(result.Trades, tradeFromBuy(tran.InvBuy, "Stocks", 0, securities))
		case ofxgo.SellStock:
			result.Trades = append(result.Trades, tradeFromSell(tran.InvSell, "Stocks", 0, securities))
		case ofxgo.BuyOpt:
			mult := float64(tran.ShPerCtrct)
			result.Trades = append(result.Trades, tradeFromBuy(tran.InvBuy, "Equity and Index Options", mult, securities))
		case ofxgo.SellOpt:
			mult := float64(tran.ShPerCtrct)
			result.Trades = append(result.Trades, tradeFromSell(tran.InvSell, "Equity and Index Options", mult, securities))
		case ofxgo.BuyMF:
			result.Trades = append(result.Trades, tradeFromBuy(tran.InvBuy, "Funds", 0, securities))
		case ofxgo.SellMF:
			result.Trades = append(result.Trades, tradeFromSell(tran.InvSell, "Funds", 0, securities))
		default:
			result.AddWarning(fmt.Sprintf("skipping unsupported investment transaction type %T", invTran))
		}
	}

	result.AddTrace("trades", fmt.Sprintf("extracted %d trades", len(result.Trades)))
	if len(result.Trades) == 0 {
		result.AddWarning("no trades found in investment statement")
	}
}

func tradeFromBuy(buy ofxgo.InvBuy, assetCategory string, multiplier float64, securities map[string]security) domain.Trade {
	symbol, sec := resolveSymbol(securities, buy.SecID.UniqueID.String())

	units, _ := buy.Units.Float64()
	price, _ := buy.UnitPrice.Float64()
	commission, _ := buy.Commission.Float64()
	fees, _ := buy.Fees.Float64()
	total, _ := buy.Total.Float64()

	trade := domain.Trade{
		Symbol:        symbol,
		DateTime:      buy.InvTran.DtTrade.Time.Format(dateTimeLayout),
		Quantity:      units,
		TradePrice:    price,
		CommissionFee: -(commission + fees),
		AssetCategory: assetCategory,
		Proceeds:      total,
		Multiplier:    multiplier,
	}
	applyOptionDetails(&trade, sec)
	return trade
}

func tradeFromSell(sell ofxgo.InvSell, assetCategory string, multiplier float64, securities map[string]security) domain.Trade {
	symbol, sec := resolveSymbol(securities, sell.SecID.UniqueID.String())

	units, _ := sell.Units.Float64()
	price, _ := sell.UnitPrice.Float64()
	commission, _ := sell.Commission.Float64()
	fees, _ := sell.Fees.Float64()
	total, _ := sell.Total.Float64()
	gain, _ := sell.Gain.Float64()

	trade := domain.Trade{
		Symbol:        symbol,
		DateTime:      sell.InvTran.DtTrade.Time.Format(dateTimeLayout),
		Quantity:      units,
		TradePrice:    price,
		CommissionFee: -(commission + fees),
		AssetCategory: assetCategory,
		RealizedPL:    gain,
		TradePL:       gain,
		Proceeds:      total,
		Multiplier:    multiplier,
	}
	applyOptionDetails(&trade, sec)
	return trade
}

func applyOptionDetails(trade *domain.Trade, sec security) {
	if !sec.option {
		return
	}
	trade.PutCall = sec.putCall
	trade.Strike = sec.strike
	trade.Expiry = sec.expiry
}

func (p *Parser) extractPositions(result *domain.ParseResult, invStmt *ofxgo.InvStatementResponse, securities map[string]security) {
	for _, pos := range invStmt.InvPosList {
		var invPos ofxgo.InvPosition
		assetType := domain.AssetTypeStock

		switch position := pos.(type) {
		case ofxgo.StockPosition:
			invPos = position.InvPos
		case ofxgo.OptPosition:
			invPos = position.InvPos
			assetType = domain.AssetTypeOption
		case ofxgo.MFPosition:
			invPos = position.InvPos
		case ofxgo.DebtPosition:
			invPos = position.InvPos
		case ofxgo.OtherPosition:
			invPos = position.InvPos
		default:
			result.AddWarning(fmt.Sprintf("skipping unsupported position type %T", pos))
			continue
		}

		symbol, sec := resolveSymbol(securities, invPos.SecID.UniqueID.String())
		units, _ := invPos.Units.Float64()
		price, _ := invPos.UnitPrice.Float64()
		value, _ := invPos.MktVal.Float64()

		// Short positions report positive units with a SHORT position type.
		if strings.EqualFold(invPos.PosType.String(), "SHORT") && units > 0 {
			units = -units
		}

		position := domain.Position{
			Symbol:      symbol,
			AssetType:   assetType,
			Quantity:    units,
			MarketPrice: price,
			MarketValue: value,
		}
		if sec.option {
			position.Strike = sec.strike
		}
		result.Positions = append(result.Positions, position)
	}

	result.AddTrace("positions", fmt.Sprintf("extracted %d positions", len(result.Positions)))
}
