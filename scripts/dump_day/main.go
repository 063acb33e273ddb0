// dump_day - A utility to inspect one trading date of the historical chain.
// Prints the day's summary and filtered rows as a table, and optionally
// exports the rows to CSV for spreadsheet work.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"github.com/eddiefleurent/stamford_chains/internal/chain"
	"github.com/eddiefleurent/stamford_chains/internal/config"
	"github.com/eddiefleurent/stamford_chains/internal/models"
)

const dateLayout = "2006-01-02"

// csvRow flattens a chain row for export. Moneyness is a string so that rows
// without an underlying estimate export as an empty cell instead of 0.
type csvRow struct {
	Timestamp      string  `csv:"timestamp"`
	Expiration     string  `csv:"expiration"`
	Strike         float64 `csv:"strike"`
	Type           string  `csv:"type"`
	Close          float64 `csv:"close"`
	Volume         int64   `csv:"volume"`
	Transactions   int64   `csv:"transactions"`
	DaysToExpiry   int     `csv:"days_to_expiry"`
	Moneyness      string  `csv:"moneyness"`
	LiquidityScore float64 `csv:"liquidity_score"`
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		dateStr    = flag.String("date", "", "Trading date to dump (YYYY-MM-DD)")
		csvPath    = flag.String("csv", "", "Optional CSV output path")
		limit      = flag.Int("limit", 40, "Max rows to print (0 = all); CSV export is never truncated")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc, err := cfg.Session.Location()
	if err != nil {
		log.Fatalf("Invalid session timezone: %v", err)
	}
	startMin, endMin, err := cfg.Session.Band()
	if err != nil {
		log.Fatalf("Invalid session band: %v", err)
	}

	loader, err := chain.New(cfg.Dataset.Path, chain.Options{
		Location:     loc,
		SessionStart: startMin,
		SessionEnd:   endMin,
	})
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	if *dateStr == "" {
		printDates(loader)
		return
	}

	date, err := time.ParseInLocation(dateLayout, *dateStr, loader.Location())
	if err != nil {
		log.Fatalf("Invalid -date: %v", err)
	}

	filters := chain.Filters{
		MinVolume:      cfg.Filters.MinVolume,
		MaxDTE:         cfg.Filters.MaxDTE,
		StrikeRangePct: cfg.Filters.StrikeRangePct,
		IncludeExpired: cfg.Filters.IncludeExpiredRows(),
	}
	rows := loader.LoadDay(date, filters)
	cond := loader.AnalyzeMarketConditions(date, filters)

	printSummary(cond)
	printRows(rows, *limit)

	if *csvPath != "" {
		if err := exportCSV(rows, *csvPath); err != nil {
			log.Fatalf("CSV export failed: %v", err)
		}
		fmt.Printf("\nWrote %d rows to %s\n", len(rows), *csvPath)
	}
}

func printDates(loader *chain.Loader) {
	dates := loader.AvailableDates(time.Time{}, time.Time{})
	fmt.Printf("Dataset has %d rows across %d trading date(s):\n", loader.RowCount(), len(dates))
	for _, d := range dates {
		fmt.Printf("  %s\n", d.Format(dateLayout))
	}
	fmt.Println("\nRe-run with -date YYYY-MM-DD to dump one day.")
}

func printSummary(cond models.MarketConditions) {
	fmt.Printf("Date:            %s\n", cond.Date.Format(dateLayout))
	fmt.Printf("Rows:            %d\n", cond.Rows)
	fmt.Printf("Regime:          %s\n", cond.Regime)
	fmt.Printf("Put/Call ratio:  %.2f (calls %d / puts %d)\n", cond.PutCallRatio, cond.CallVolume, cond.PutVolume)
	fmt.Printf("Dispersion:      %.3f\n", cond.PriceDispersion)
	if cond.HasEstimate {
		fmt.Printf("Underlying est.: %.2f\n", cond.UnderlyingEstimate)
	} else {
		fmt.Println("Underlying est.: n/a")
	}
	fmt.Println()
}

func printRows(rows []models.ChainRow, limit int) {
	if len(rows) == 0 {
		fmt.Println("No rows survived filtering for this date.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Exp", "Strike", "Type", "Close", "Vol", "Tx", "DTE", "Mny", "Liq"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)

	printed := 0
	for _, r := range rows {
		if limit > 0 && printed == limit {
			break
		}
		table.Append([]string{
			r.Timestamp.Format("15:04:05"),
			r.Expiration.Format(dateLayout),
			fmt.Sprintf("%.2f", r.Strike),
			string(r.Type),
			fmt.Sprintf("%.2f", r.Close),
			fmt.Sprintf("%d", r.Volume),
			fmt.Sprintf("%d", r.Transactions),
			fmt.Sprintf("%d", r.DaysToExpiry),
			formatMoneyness(r.Moneyness),
			fmt.Sprintf("%.1f", r.LiquidityScore),
		})
		printed++
	}
	table.Render()

	if printed < len(rows) {
		fmt.Printf("... %d more row(s); raise -limit or use -csv for all of them\n", len(rows)-printed)
	}
}

func formatMoneyness(m *float64) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%+.4f", *m)
}

func exportCSV(rows []models.ChainRow, path string) error {
	out := make([]csvRow, len(rows))
	for i, r := range rows {
		out[i] = csvRow{
			Timestamp:      r.Timestamp.Format(time.RFC3339),
			Expiration:     r.Expiration.Format(dateLayout),
			Strike:         r.Strike,
			Type:           string(r.Type),
			Close:          r.Close,
			Volume:         r.Volume,
			Transactions:   r.Transactions,
			DaysToExpiry:   r.DaysToExpiry,
			Moneyness:      formatMoneyness(r.Moneyness),
			LiquidityScore: r.LiquidityScore,
		}
	}

	f, err := os.Create(path) // #nosec G304 -- operator-chosen output path
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := gocsv.MarshalFile(&out, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing csv: %w", err)
	}
	return f.Close()
}
