// Package mock generates deterministic synthetic chain data for tests and
// the integration harness. Nothing here runs in the serving path.
package mock

import (
	"math"
	"math/rand"
	"time"

	"github.com/eddiefleurent/stamford_chains/internal/models"
	"github.com/eddiefleurent/stamford_chains/internal/util"
)

// Generator produces plausible option chain rows around a drifting spot
// price. All randomness flows from the seed, so a given seed always yields
// the same dataset.
type Generator struct {
	rng  *rand.Rand
	spot float64
	// Underlying is stamped on every generated row.
	Underlying string
}

// NewGenerator creates a Generator with the given seed. The spot starts in
// SPY's historical neighborhood.
func NewGenerator(seed int64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	return &Generator{
		rng:        rng,
		spot:       440 + rng.Float64()*20,
		Underlying: "SPY",
	}
}

// Row is a neutral pre-serialization chain row. The parquet writers map it
// into either source schema.
type Row struct {
	Timestamp    time.Time
	Expiration   time.Time
	Strike       float64
	Type         models.ContractType
	Close        float64
	Volume       int64
	Transactions int64
	Underlying   string
}

// Day generates rows for one calendar date in loc: half-hour snapshots across
// the regular session, a strike ladder on both sides, expirations at 0, 7,
// and 60 days plus one already-expired contract, and a few deliberately
// off-session rows so market-hours filtering has something to reject.
func (g *Generator) Day(date time.Time, loc *time.Location) []Row {
	y, m, d := date.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	g.spot += (g.rng.Float64() - 0.5) * 4

	expirations := []time.Time{
		midnight,                   // 0DTE
		midnight.AddDate(0, 0, 7),  // weekly
		midnight.AddDate(0, 0, 60), // beyond the default DTE window
		midnight.AddDate(0, 0, -3), // stale row from an expired contract
	}

	var rows []Row
	snapshot := func(ts time.Time) {
		for _, exp := range expirations {
			for offset := -10.0; offset <= 10.0; offset += 2.0 {
				strike := util.RoundToTick(g.spot+offset, 1.0)
				for _, ct := range []models.ContractType{models.Call, models.Put} {
					rows = append(rows, g.contract(ts, exp, strike, ct))
				}
			}
		}
	}

	for mins := 9*60 + 30; mins <= 16*60; mins += 30 {
		snapshot(midnight.Add(time.Duration(mins) * time.Minute))
	}
	// Pre-open and after-hours prints that date queries must exclude.
	snapshot(midnight.Add(9 * time.Hour))
	snapshot(midnight.Add(16*time.Hour + 30*time.Minute))

	return rows
}

// contract builds one synthetic row with a crude intrinsic-plus-time-value
// price and volume skewed toward at-the-money strikes.
func (g *Generator) contract(ts, exp time.Time, strike float64, ct models.ContractType) Row {
	intrinsic := g.spot - strike
	if ct == models.Put {
		intrinsic = strike - g.spot
	}
	if intrinsic < 0 {
		intrinsic = 0
	}
	dte := exp.Sub(ts).Hours() / 24
	if dte < 0 {
		dte = 0
	}
	timeValue := 0.02 * g.spot * math.Sqrt(dte/365+0.001)
	price := util.RoundToTick(intrinsic+timeValue*(0.8+0.4*g.rng.Float64()), 0.01)
	if price < 0.01 {
		price = 0.01
	}

	// Volume decays with distance from the money; occasional zero prints.
	distance := math.Abs(strike - g.spot)
	base := 200 * math.Exp(-distance*0.3)
	volume := int64(base * g.rng.ExpFloat64())
	if g.rng.Intn(12) == 0 {
		volume = 0
	}
	transactions := volume / 3
	if volume > 0 && transactions == 0 {
		transactions = 1
	}

	return Row{
		Timestamp:    ts,
		Expiration:   exp,
		Strike:       strike,
		Type:         ct,
		Close:        price,
		Volume:       volume,
		Transactions: transactions,
		Underlying:   g.Underlying,
	}
}

// Dataset generates rows for n consecutive weekdays starting at start.
func (g *Generator) Dataset(start time.Time, n int, loc *time.Location) []Row {
	var rows []Row
	day := start
	for generated := 0; generated < n; {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			rows = append(rows, g.Day(day, loc)...)
			generated++
		}
		day = day.AddDate(0, 0, 1)
	}
	return rows
}
