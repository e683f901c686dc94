package data

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"basis-backtest/internal/model"
)

const (
	fillStep      = 5 * time.Second
	fillMaxOffset = 5 * time.Minute
)

// FillMissingSpot patches gaps in the spot column in place by asking the
// exchange for the nearest one-second kline at or after each missing
// timestamp, scanning forward in five-second steps up to five minutes.
// Returns the number of rows filled. Rows with no kline in range are
// left missing rather than fabricated.
func (c *BinanceClient) FillMissingSpot(ctx context.Context, symbol string, series model.Series) (int, error) {
	filled := 0
	for i := range series {
		if series[i].HasSpot() {
			continue
		}
		px, found, err := c.nearestSpotClose(ctx, symbol, series[i].Timestamp)
		if err != nil {
			return filled, err
		}
		if !found {
			c.log.WithField("timestamp", series[i].Timestamp).Warn("no spot kline near timestamp")
			continue
		}
		series[i].SpotPrice = px
		filled++
		c.log.WithFields(logrus.Fields{
			"timestamp": series[i].Timestamp,
			"price":     px,
		}).Info("filled missing spot price")
	}
	return filled, nil
}

func (c *BinanceClient) nearestSpotClose(ctx context.Context, symbol string, t time.Time) (float64, bool, error) {
	for off := time.Duration(0); off <= fillMaxOffset; off += fillStep {
		page, err := c.klinesPage(ctx, SpotMarket, symbol, "1s", t.Add(off).UnixMilli(), 0, 1)
		if err != nil {
			return 0, false, err
		}
		if len(page) > 0 {
			return page[0].Close, true, nil
		}
	}
	return 0, false, nil
}
