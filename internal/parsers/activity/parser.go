package activity

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/parser"
)

// Parser implements IBKR activity statement parsing with a stateless
// design. The struct has no fields because statement parsing requires no
// configuration state; each call operates solely on the input data, making
// the parser safe for concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared activity statement parser instance.
// Safe for concurrent use due to stateless design.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ibkr-activity"
}

// CanParse checks if this parser can handle the file based on extension and
// header. Activity statements open with a section/row-type shaped line
// such as "Statement,Header,Field Name,Field Value".
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		return false
	}

	lines := strings.SplitN(string(header), "\n", 2)
	if len(lines) == 0 {
		return false
	}
	fields := Tokenize(strings.TrimRight(lines[0], "\r"))
	if len(fields) < 2 {
		return false
	}
	return fields[1] == rowTypeHeader || fields[1] == rowTypeData
}

// Parse reads the statement content and delegates to ParseStatement. The
// returned error is reserved for I/O failures and context cancellation;
// statement content problems surface through the result.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*domain.ParseResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement content: %w", err)
	}

	return p.ParseStatement(string(content)), nil
}

// ParseStatement sequences section identification and field extraction over
// the raw statement text and assembles the final ParseResult.
//
// Failure policy: if the account ID is still the UNKNOWN sentinel after all
// extraction attempts, the whole parse is failed — this is the sole hard
// failure gate. All other missing data degrades to empty collections with
// warnings. A panic anywhere in the pipeline is converted into the same
// failed-result shape at this boundary; ParseStatement never propagates
// one to its caller.
func (p *Parser) ParseStatement(rawText string) (result *domain.ParseResult) {
	result = domain.NewParseResult()

	defer func() {
		if r := recover(); r != nil {
			result = domain.FailedParseResult("unexpected failure while parsing statement: %v", r)
		}
	}()

	lines := splitAndTokenize(rawText)
	sections := identifySectionLines(lines)
	result.AddTrace("sections", "identified %d sections", sections.Len())

	p.extractAccount(sections, result)
	p.extractTrades(sections, result)
	p.extractPositions(sections, result)
	p.extractCumulativePL(lines, result)

	if !result.Account.IsIdentified() {
		return domain.FailedParseResult("could not establish account identity: no account ID found in statement")
	}

	p.deriveOptionTrades(result)

	return result
}

// deriveOptionTrades maps option-category trades into the option-trade
// shape with a direction-based strategy: long+CALL -> LONG_CALL, long+PUT
// -> LONG_PUT, short+CALL -> SHORT_CALL, short+PUT -> SHORT_PUT, otherwise
// OTHER.
func (p *Parser) deriveOptionTrades(result *domain.ParseResult) {
	result.OptionTrades = append(result.OptionTrades, domain.DeriveOptionTrades(result.Trades)...)
	if len(result.OptionTrades) > 0 {
		result.AddTrace("options", "derived %d option trades", len(result.OptionTrades))
	}
}
