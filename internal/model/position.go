package model

import "time"

// Direction names which leg of the hedge is long.
type Direction string

const (
	// LongSpotShortPerp is the classic carry trade: hold spot, short the
	// perp, collect positive funding.
	LongSpotShortPerp Direction = "LONG_SPOT_SHORT_PERP"
	// ShortSpotLongPerp is the reverse trade for negative-funding regimes.
	ShortSpotLongPerp Direction = "SHORT_SPOT_LONG_PERP"
)

// Position is the single live hedge. Entry prices and size are frozen at
// open; there is no resizing and no partial close.
type Position struct {
	Direction Direction `json:"direction"`
	EntrySpot float64   `json:"entry_spot"`
	EntryMark float64   `json:"entry_mark"`
	Size      float64   `json:"size"` // underlying units
	EntryCost float64   `json:"entry_cost"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Notional is the frozen quote-currency value of the position, the
// default funding accrual base.
func (p Position) Notional() float64 {
	return p.Size * p.EntryMark
}
