package resolver

import (
	"github.com/shopspring/decimal"
	"stockbar/internal/provider"
)

// Direction of the move since the previous close. No change counts as Up.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

var hundred = decimal.NewFromInt(100)

// DisplayQuote is the resolved quote handed to the presenter.
type DisplayQuote struct {
	Symbol        string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
	IsLive        bool
	Source        string
}

func newDisplayQuote(q provider.Quote, live bool) DisplayQuote {
	return DisplayQuote{Symbol: q.Symbol, Price: q.Price, PreviousClose: q.PreviousClose, IsLive: live, Source: q.Source}
}

func (q DisplayQuote) Change() decimal.Decimal { return q.Price.Sub(q.PreviousClose) }

// Percent is the change relative to the previous close, or zero when there
// is no previous close to compare against.
func (q DisplayQuote) Percent() decimal.Decimal {
	if q.PreviousClose.IsZero() {
		return decimal.Zero
	}
	return q.Change().Mul(hundred).Div(q.PreviousClose)
}

func (q DisplayQuote) Direction() Direction {
	if q.Change().IsNegative() {
		return Down
	}
	return Up
}
