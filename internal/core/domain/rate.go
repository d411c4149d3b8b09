package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateQuote is one provider's answer for a currency pair. Rate is the price
// of one unit of From expressed in To; Bid and Ask bracket it (ask >= bid).
// Volume24h and Change24h are optional provider statistics.
type RateQuote struct {
	From      string           `json:"from"`
	To        string           `json:"to"`
	Rate      decimal.Decimal  `json:"rate"`
	Bid       decimal.Decimal  `json:"bid"`
	Ask       decimal.Decimal  `json:"ask"`
	Provider  string           `json:"provider"`
	FetchedAt time.Time        `json:"fetched_at"`
	Volume24h *decimal.Decimal `json:"volume_24h,omitempty"`
	Change24h *decimal.Decimal `json:"change_24h,omitempty"`
}

// Age returns how long ago the quote was fetched.
func (q RateQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}

// Inverse returns the quote for the opposite direction at 18 decimal places.
// Bid and ask cross over: the inverse bid is the reciprocal of the ask.
func (q RateQuote) Inverse() RateQuote {
	one := decimal.NewFromInt(1)
	inv := RateQuote{
		From:      q.To,
		To:        q.From,
		Rate:      one.DivRound(q.Rate, 18),
		Provider:  q.Provider,
		FetchedAt: q.FetchedAt,
	}
	if q.Bid.IsPositive() && q.Ask.IsPositive() {
		inv.Bid = one.DivRound(q.Ask, 18)
		inv.Ask = one.DivRound(q.Bid, 18)
	}
	return inv
}
