// Package roundtrip pairs opening and closing trade legs into complete
// position lifecycles and computes per-trip and aggregate P&L.
package roundtrip

import (
	"math"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

// MatchingPolicy selects how overlapping opens on the same symbol are
// consumed by a close. Only FIFO is implemented; the policy is exposed so
// broker-specific behavior (LIFO, average-cost) can be added without
// changing callers.
type MatchingPolicy string

const (
	// MatchingFIFO closes the earliest unmatched open lot first.
	MatchingFIFO MatchingPolicy = "fifo"
)

// Policy configures the matcher.
type Policy struct {
	Matching MatchingPolicy

	// DefaultMultiplier is applied when a trade does not state a contract
	// multiplier. The default of 100 reflects the standard option contract
	// size; this is a deliberate default, not an inferred value.
	DefaultMultiplier float64
}

// DefaultPolicy returns FIFO matching with the documented multiplier
// default of 100.
func DefaultPolicy() Policy {
	return Policy{
		Matching:          MatchingFIFO,
		DefaultMultiplier: 100,
	}
}

// Result is the output of one matching pass.
type Result struct {
	// RoundTrips in chronological close order.
	RoundTrips []domain.RoundTrip
	// OpenTrades holds the unmatched remainder legs, scaled to their
	// remaining quantity. Unmatched legs are never synthesized into a
	// RoundTrip.
	OpenTrades []domain.Trade
	// ClosedTrades holds each closing leg that consumed at least one open
	// lot, in input order.
	ClosedTrades []domain.Trade
	// WinRate is wins / closed round trips; 0 when there are no closed
	// round trips (never NaN).
	WinRate float64
}

// quantityEpsilon absorbs float accumulation error when a lot is consumed.
const quantityEpsilon = 1e-9

// lot is one open leg with its unmatched absolute quantity.
type lot struct {
	trade     domain.Trade
	remaining float64
}

// book is the running position for one symbol.
type book struct {
	lots      []lot
	direction float64 // sign of the open lots' quantity; 0 when flat
}

// Match pairs legs with the default policy.
func Match(trades []domain.Trade) *Result {
	return MatchWithPolicy(trades, DefaultPolicy())
}

// MatchWithPolicy consumes the flat trade list (assumed chronologically
// ordered per symbol, as statements deliver it) and pairs opening and
// closing legs using a running-position model. A trade against the current
// position closes open lots FIFO; only the flattening portion is treated
// as a close, and a reversal remainder becomes a new open lot.
func MatchWithPolicy(trades []domain.Trade, policy Policy) *Result {
	result := &Result{
		RoundTrips:   []domain.RoundTrip{},
		OpenTrades:   []domain.Trade{},
		ClosedTrades: []domain.Trade{},
	}

	books := make(map[string]*book)
	symbolOrder := []string{}

	for _, trade := range trades {
		if trade.Quantity == 0 {
			continue
		}

		b, ok := books[trade.Symbol]
		if !ok {
			b = &book{}
			books[trade.Symbol] = b
			symbolOrder = append(symbolOrder, trade.Symbol)
		}

		sign := 1.0
		if trade.Quantity < 0 {
			sign = -1
		}

		// Same direction as the running position (or flat): a new open lot.
		if len(b.lots) == 0 || sign == b.direction {
			b.lots = append(b.lots, lot{trade: trade, remaining: math.Abs(trade.Quantity)})
			b.direction = sign
			continue
		}

		// Opposite direction: close open lots FIFO.
		closeRemaining := math.Abs(trade.Quantity)
		closedAny := false
		for closeRemaining > quantityEpsilon && len(b.lots) > 0 {
			front := &b.lots[0]
			matched := math.Min(front.remaining, closeRemaining)

			result.RoundTrips = append(result.RoundTrips,
				buildRoundTrip(front.trade, trade, matched, policy))
			closedAny = true

			front.remaining -= matched
			closeRemaining -= matched
			if front.remaining <= quantityEpsilon {
				b.lots = b.lots[1:]
			}
		}
		if closedAny {
			result.ClosedTrades = append(result.ClosedTrades, trade)
		}

		// Reversal remainder establishes a position in the new direction.
		if closeRemaining > quantityEpsilon {
			remainder := trade
			remainder.Quantity = sign * closeRemaining
			b.lots = append(b.lots, lot{trade: remainder, remaining: closeRemaining})
			b.direction = sign
		} else if len(b.lots) == 0 {
			b.direction = 0
		}
	}

	// Remaining lots are the open-position remainder, scaled to what is
	// still unmatched.
	for _, symbol := range symbolOrder {
		b := books[symbol]
		for _, l := range b.lots {
			open := l.trade
			openSign := 1.0
			if open.Quantity < 0 {
				openSign = -1
			}
			open.Quantity = openSign * l.remaining
			result.OpenTrades = append(result.OpenTrades, open)
		}
	}

	result.WinRate = winRate(result.RoundTrips)

	return result
}

// buildRoundTrip assembles one matched pair. Both legs are scaled to the
// matched quantity; commissions are prorated by the matched fraction so a
// partially closed leg's fees are split across its round trips.
func buildRoundTrip(open, close domain.Trade, matched float64, policy Policy) domain.RoundTrip {
	direction := 1.0
	if open.Quantity < 0 {
		direction = -1
	}

	multiplier := open.Multiplier
	if multiplier == 0 {
		multiplier = close.Multiplier
	}
	if multiplier == 0 {
		multiplier = policy.DefaultMultiplier
	}

	openLeg := open
	openLeg.Quantity = direction * matched
	openLeg.CommissionFee = prorate(open.CommissionFee, matched, open.Quantity)

	closeLeg := close
	closeLeg.Quantity = -direction * matched
	closeLeg.CommissionFee = prorate(close.CommissionFee, matched, close.Quantity)

	gross := (close.TradePrice - open.TradePrice) * multiplier * direction * matched
	fees := math.Abs(openLeg.CommissionFee) + math.Abs(closeLeg.CommissionFee)

	return domain.RoundTrip{
		Symbol:  open.Symbol,
		Open:    openLeg,
		Close:   closeLeg,
		GrossPL: gross,
		Fees:    fees,
		NetPL:   gross - fees,
	}
}

// prorate scales a leg's commission by the matched fraction of its total
// quantity.
func prorate(commission, matched, totalQuantity float64) float64 {
	total := math.Abs(totalQuantity)
	if total == 0 {
		return commission
	}
	return commission * matched / total
}

// winRate computes wins / total closed round trips, returning 0 (not NaN)
// when there are none.
func winRate(trips []domain.RoundTrip) float64 {
	if len(trips) == 0 {
		return 0
	}
	wins := 0
	for _, rt := range trips {
		if rt.Win() {
			wins++
		}
	}
	return float64(wins) / float64(len(trips))
}
