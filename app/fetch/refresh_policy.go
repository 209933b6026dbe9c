package fetch

import (
	"math"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/cfg"
)

// Policy maps a game's age to its refresh interval: tiered exponential
// backoff with a ceiling. Older games change less and are re-fetched less
// often.
type Policy struct {
	UpcomingIntervalDays int
	BaseIntervalDays     int
	DecayFactor          float64
	MaxIntervalDays      int
}

func PolicyFromCfg(c *cfg.Cfg) Policy {
	return Policy{
		UpcomingIntervalDays: c.UpcomingIntervalDays,
		BaseIntervalDays:     c.BaseIntervalDays,
		DecayFactor:          c.DecayFactor,
		MaxIntervalDays:      c.MaxIntervalDays,
	}
}

// NextRefreshInterval returns the refresh interval in days for a game
// published in yearPublished. A nil year is treated as freshly published.
func (p Policy) NextRefreshInterval(yearPublished *int, currentYear int) int {
	year := currentYear
	if yearPublished != nil {
		year = *yearPublished
	}

	switch {
	case year > currentYear:
		return p.UpcomingIntervalDays
	case year == currentYear:
		return p.BaseIntervalDays
	}

	interval := float64(p.BaseIntervalDays) * math.Pow(p.DecayFactor, float64(currentYear-year))
	if interval > float64(p.MaxIntervalDays) {
		return p.MaxIntervalDays
	}
	return int(interval)
}

// NextRefreshDue applies the interval to a reference time
func (p Policy) NextRefreshDue(yearPublished *int, now time.Time) time.Time {
	days := p.NextRefreshInterval(yearPublished, now.UTC().Year())
	return now.UTC().Add(time.Duration(days) * 24 * time.Hour)
}
