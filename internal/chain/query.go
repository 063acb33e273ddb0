package chain

import (
	"sort"
	"time"

	"github.com/eddiefleurent/stamford_chains/internal/models"
)

// Filter defaults mirroring the historical callers of the loader.
const (
	// DefaultMinVolume is the liquidity floor.
	DefaultMinVolume int64 = 5
	// DefaultMaxDTE bounds days-to-expiry.
	DefaultMaxDTE = 45
	// DefaultStrikeRangePct is the strike band around the underlying
	// estimate.
	DefaultStrikeRangePct = 0.15
)

// Filters bounds a per-day chain query.
type Filters struct {
	// MinVolume keeps rows with Volume >= MinVolume. Zero disables the floor.
	MinVolume int64
	// MaxDTE keeps rows with DaysToExpiry <= MaxDTE.
	MaxDTE int
	// StrikeRangePct keeps strikes within estimate*(1±pct). Skipped entirely
	// when no underlying estimate exists for the day.
	StrikeRangePct float64
	// IncludeExpired keeps rows with negative DaysToExpiry (stale rows in a
	// historical snapshot, including same-day 0DTE rows captured at or past
	// expiry). The historical behavior is true.
	IncludeExpired bool
}

// DefaultFilters returns the filter set used when callers pass none.
func DefaultFilters() Filters {
	return Filters{
		MinVolume:      DefaultMinVolume,
		MaxDTE:         DefaultMaxDTE,
		StrikeRangePct: DefaultStrikeRangePct,
		IncludeExpired: true,
	}
}

// AvailableDates returns the distinct calendar dates present in the dataset,
// strictly increasing, each at midnight exchange time. A non-zero start or
// end bounds the result inclusively.
func (l *Loader) AvailableDates(start, end time.Time) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for i := range l.records {
		d := l.records[i].Date()
		if !start.IsZero() && d.Before(l.midnight(start)) {
			continue
		}
		if !end.IsZero() && d.After(l.midnight(end)) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// LoadDay returns the filtered chain for one calendar date, sorted by
// (timestamp, contract type, strike). Days with no surviving rows yield an
// empty result, never an error. Every call recomputes from the immutable
// backing store and returns fresh copies.
func (l *Loader) LoadDay(date time.Time, filters ...Filters) []models.ChainRow {
	f := DefaultFilters()
	if len(filters) > 0 {
		f = filters[0]
	}
	day := l.midnight(date)

	var slice []models.OptionRecord
	for i := range l.records {
		rec := &l.records[i]
		if !rec.MarketHours || !rec.Date().Equal(day) {
			continue
		}
		if rec.Volume < f.MinVolume {
			continue
		}
		if rec.DaysToExpiry > f.MaxDTE {
			continue
		}
		if !f.IncludeExpired && rec.DaysToExpiry < 0 {
			continue
		}
		slice = append(slice, *rec)
	}
	if len(slice) == 0 {
		return nil
	}

	estimate, hasEstimate := EstimateUnderlyingPrice(slice)
	if hasEstimate && f.StrikeRangePct > 0 {
		lo := estimate * (1 - f.StrikeRangePct)
		hi := estimate * (1 + f.StrikeRangePct)
		kept := slice[:0]
		for i := range slice {
			if slice[i].Strike >= lo && slice[i].Strike <= hi {
				kept = append(kept, slice[i])
			}
		}
		slice = kept
	}
	if len(slice) == 0 {
		return nil
	}

	rows := make([]models.ChainRow, len(slice))
	scores := liquidityScores(slice)
	for i := range slice {
		rows[i] = models.ChainRow{OptionRecord: slice[i], LiquidityScore: scores[i]}
		if hasEstimate {
			m := moneyness(slice[i].Type, slice[i].Strike, estimate)
			rows[i].Moneyness = &m
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Strike < b.Strike
	})
	return rows
}

// moneyness is the signed relative distance of strike from the estimate,
// positive meaning further out-of-the-money for both contract sides.
func moneyness(ct models.ContractType, strike, estimate float64) float64 {
	if estimate == 0 {
		return 0
	}
	if ct == models.Call {
		return (strike - estimate) / estimate
	}
	return (estimate - strike) / estimate
}
