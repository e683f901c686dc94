package model

import (
	"fmt"
	"math"
	"time"
)

// MarketSnapshot is one aligned observation of a funding cycle: the rate
// settled at Timestamp plus the spot and perpetual mark prices as of the
// nearest preceding kline.
//
// SpotPrice is NaN when the spot feed had a gap; consumers substitute
// MarkPrice for a missing observation. A zero or negative SpotPrice is
// an observed but unusable price and gets no substitution.
type MarketSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	FundingRate float64   `json:"funding_rate"`
	SpotPrice   float64   `json:"spot_price,omitempty"`
	MarkPrice   float64   `json:"mark_price"`
}

// HasSpot reports whether the snapshot carries an observed spot price.
// The missing marker is NaN; any other value, valid or not, counts as
// observed.
func (s MarketSnapshot) HasSpot() bool {
	return !math.IsNaN(s.SpotPrice)
}

// Series is an ordered, replayable sequence of snapshots sorted ascending
// by timestamp. Producing it in order is the caller's job; consumers do
// not re-sort.
type Series []MarketSnapshot

// Validate checks the ascending-timestamp contract. Equal timestamps are
// tolerated; a decreasing step is a usage error.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if s[i].Timestamp.Before(s[i-1].Timestamp) {
			return fmt.Errorf("series not sorted: snapshot %d (%s) precedes snapshot %d (%s)",
				i, s[i].Timestamp.Format(time.RFC3339), i-1, s[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Duration is the elapsed time between the first and last snapshot.
func (s Series) Duration() time.Duration {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp.Sub(s[0].Timestamp)
}
