package activity

import (
	"regexp"
	"strconv"
	"time"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

// optionSymbolPattern matches the fixed-width option ticker encoding:
// underlying letters, space(s), YYMMDD expiry, C or P, and an 8-digit
// strike in thousandths. Example: "AAPL 230616C00185000".
var optionSymbolPattern = regexp.MustCompile(`^([A-Z]+) +(\d{6})([CP])(\d{8})$`)

// OptionDetails is the decoded form of an option ticker.
type OptionDetails struct {
	PutCall domain.PutCall
	Strike  float64
	Expiry  time.Time
}

// DecodeOptionSymbol parses an option ticker encoding into its underlying
// components. Returns nil when the symbol does not match the pattern —
// callers must treat nil as "not an option" rather than a failure.
func DecodeOptionSymbol(symbol string) *OptionDetails {
	m := optionSymbolPattern.FindStringSubmatch(symbol)
	if m == nil {
		return nil
	}

	yy, _ := strconv.Atoi(m[2][0:2])
	mm, _ := strconv.Atoi(m[2][2:4])
	dd, _ := strconv.Atoi(m[2][4:6])

	strikeThousandths, _ := strconv.Atoi(m[4])

	putCall := domain.PutCallCall
	if m[3] == "P" {
		putCall = domain.PutCallPut
	}

	return &OptionDetails{
		PutCall: putCall,
		Strike:  float64(strikeThousandths) / 1000,
		Expiry:  time.Date(2000+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC),
	}
}
