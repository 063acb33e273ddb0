package chain

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/eddiefleurent/stamford_chains/internal/models"
	"github.com/eddiefleurent/stamford_chains/internal/util"
)

// Liquidity score weights: volume dominates, transaction count refines.
const (
	volumeWeight      = 0.7
	transactionWeight = 0.3
	// LiquidScoreFloor is the score at or above which a contract counts as
	// liquid in the day summary.
	LiquidScoreFloor = 50.0
)

// Regime classification thresholds. These are uncalibrated heuristics carried
// over from the historical dataset's consumers, not validated signals; treat
// the resulting label as descriptive, not predictive.
const (
	bearishPutCallRatio = 1.2
	bullishPutCallRatio = 0.8
	volatileDispersion  = 0.15
	highVolDispersion   = 0.20
)

// EstimateUnderlyingPrice derives a spot proxy for the day from the chain
// itself. It takes the rows at the latest timestamp in the slice and returns,
// in order of preference: the average of the median call strike and median
// put strike when both sides are present, otherwise the volume-weighted
// average strike, or the plain median strike when that snapshot traded no
// volume. The result is approximate; it is not a mid-price or a true
// parity-derived value. ok is false for an empty slice.
func EstimateUnderlyingPrice(slice []models.OptionRecord) (estimate float64, ok bool) {
	if len(slice) == 0 {
		return 0, false
	}

	var latest time.Time
	for i := range slice {
		if slice[i].Timestamp.After(latest) {
			latest = slice[i].Timestamp
		}
	}

	var (
		strikes     []float64
		callStrikes []float64
		putStrikes  []float64
		totalVolume int64
		weightedSum float64
	)
	for i := range slice {
		rec := &slice[i]
		if !rec.Timestamp.Equal(latest) {
			continue
		}
		strikes = append(strikes, rec.Strike)
		totalVolume += rec.Volume
		weightedSum += rec.Strike * float64(rec.Volume)
		switch rec.Type {
		case models.Call:
			callStrikes = append(callStrikes, rec.Strike)
		case models.Put:
			putStrikes = append(putStrikes, rec.Strike)
		}
	}

	if len(callStrikes) > 0 && len(putStrikes) > 0 {
		callMed, err := stats.Median(callStrikes)
		if err == nil {
			putMed, err := stats.Median(putStrikes)
			if err == nil {
				return (callMed + putMed) / 2, true
			}
		}
	}

	if totalVolume == 0 {
		med, err := stats.Median(strikes)
		if err != nil {
			return 0, false
		}
		return med, true
	}
	return weightedSum / float64(totalVolume), true
}

// liquidityScores computes the 0-100 blended score for every row, scaled by
// the slice maxima. A zero max volume or max transaction count zeroes that
// component instead of dividing by zero.
func liquidityScores(slice []models.OptionRecord) []float64 {
	var maxVolume, maxTransactions int64
	for i := range slice {
		if slice[i].Volume > maxVolume {
			maxVolume = slice[i].Volume
		}
		if slice[i].Transactions > maxTransactions {
			maxTransactions = slice[i].Transactions
		}
	}

	scores := make([]float64, len(slice))
	for i := range slice {
		vs := util.Log1pRatio(float64(slice[i].Volume), float64(maxVolume))
		ts := util.Log1pRatio(float64(slice[i].Transactions), float64(maxTransactions))
		scores[i] = util.Clamp((volumeWeight*vs+transactionWeight*ts)*100, 0, 100)
	}
	return scores
}

// AnalyzeMarketConditions summarizes one trading day using the same filters
// as LoadDay. A day with no surviving rows yields an empty record with
// RegimeUnknown, not an error.
func (l *Loader) AnalyzeMarketConditions(date time.Time, filters ...Filters) models.MarketConditions {
	day := l.midnight(date)
	cond := models.MarketConditions{Date: day, Regime: models.RegimeUnknown}

	rows := l.LoadDay(day, filters...)
	if len(rows) == 0 {
		return cond
	}
	cond.Rows = len(rows)

	closes := make([]float64, len(rows))
	strikes := make(map[float64]struct{})
	minClose, maxClose := rows[0].Close, rows[0].Close
	for i := range rows {
		row := &rows[i]
		cond.TotalVolume += row.Volume
		switch row.Type {
		case models.Call:
			cond.CallVolume += row.Volume
		case models.Put:
			cond.PutVolume += row.Volume
		}
		closes[i] = row.Close
		strikes[row.Strike] = struct{}{}
		if row.Close < minClose {
			minClose = row.Close
		}
		if row.Close > maxClose {
			maxClose = row.Close
		}
		if row.LiquidityScore >= LiquidScoreFloor {
			cond.LiquidContracts++
		}
		if row.Moneyness != nil && !cond.HasEstimate {
			// Recover the estimate the slice was built against.
			cond.HasEstimate = true
		}
	}
	cond.UniqueStrikes = len(strikes)
	cond.PriceRange = maxClose - minClose

	if cond.CallVolume > 0 {
		cond.PutCallRatio = float64(cond.PutVolume) / float64(cond.CallVolume)
	}

	if mean, err := stats.Mean(closes); err == nil {
		cond.AvgPrice = mean
		if sd, err := stats.StandardDeviation(closes); err == nil && mean != 0 {
			cond.PriceDispersion = sd / mean
		}
	}

	if cond.HasEstimate {
		// Recompute on the returned rows; cheap relative to the slice scan
		// and keeps the summary consistent with what LoadDay produced.
		recs := make([]models.OptionRecord, len(rows))
		for i := range rows {
			recs[i] = rows[i].OptionRecord
		}
		if est, ok := EstimateUnderlyingPrice(recs); ok {
			cond.UnderlyingEstimate = est
		}
	}

	cond.Regime = classifyRegime(cond.PutCallRatio, cond.PriceDispersion)
	return cond
}

// classifyRegime maps sentiment and dispersion onto a coarse regime label
// using the fixed thresholds above.
func classifyRegime(putCallRatio, dispersion float64) models.MarketRegime {
	switch {
	case putCallRatio > bearishPutCallRatio && dispersion > volatileDispersion:
		return models.RegimeVolatileBearish
	case putCallRatio > bearishPutCallRatio:
		return models.RegimeBearish
	case putCallRatio < bullishPutCallRatio && dispersion > volatileDispersion:
		return models.RegimeVolatileBullish
	case putCallRatio < bullishPutCallRatio:
		return models.RegimeBullish
	case dispersion > highVolDispersion:
		return models.RegimeHighVolatility
	default:
		return models.RegimeNeutral
	}
}
