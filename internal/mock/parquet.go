package mock

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Raw row shapes matching the two source schema variants the loader detects.
// These mirror the production flat-file layouts; tests write them into
// t.TempDir() instead of checking binary fixtures into the repo.

type tradesFileRow struct {
	SipTimestamp     int64           `parquet:"sip_timestamp"`
	Price            float64         `parquet:"price"`
	Size             int64           `parquet:"size"`
	Details          tradesFileGroup `parquet:"details"`
	UnderlyingTicker string          `parquet:"underlying_ticker,optional"`
}

type tradesFileGroup struct {
	ExpirationDate string  `parquet:"expiration_date"`
	StrikePrice    float64 `parquet:"strike_price"`
	ContractType   string  `parquet:"contract_type"`
}

type aggregatesFileRow struct {
	Timestamp    int64   `parquet:"timestamp"`
	Expiration   string  `parquet:"expiration"`
	Strike       float64 `parquet:"strike"`
	ContractType string  `parquet:"contract_type"`
	Close        float64 `parquet:"close"`
	Volume       int64   `parquet:"volume"`
	Transactions int64   `parquet:"transactions,optional"`
	Ticker       string  `parquet:"ticker,optional"`
}

// aggregatesNoTxFileRow is the aggregate layout from sources that never
// recorded a transaction count. The loader must fall back to volume for it.
type aggregatesNoTxFileRow struct {
	Timestamp    int64   `parquet:"timestamp"`
	Expiration   string  `parquet:"expiration"`
	Strike       float64 `parquet:"strike"`
	ContractType string  `parquet:"contract_type"`
	Close        float64 `parquet:"close"`
	Volume       int64   `parquet:"volume"`
	Ticker       string  `parquet:"ticker,optional"`
}

const expirationLayout = "2006-01-02"

// WriteTrades writes rows as a SchemaTrades parquet file (nanosecond epoch,
// nested details, no transaction column).
func WriteTrades(path string, rows []Row) error {
	out := make([]tradesFileRow, len(rows))
	for i, r := range rows {
		out[i] = tradesFileRow{
			SipTimestamp: r.Timestamp.UnixNano(),
			Price:        r.Close,
			Size:         r.Volume,
			Details: tradesFileGroup{
				ExpirationDate: r.Expiration.Format(expirationLayout),
				StrikePrice:    r.Strike,
				ContractType:   string(r.Type),
			},
			UnderlyingTicker: r.Underlying,
		}
	}
	return writeParquet(path, out)
}

// WriteAggregates writes rows as a SchemaAggregates parquet file (millisecond
// epoch, flat columns). withTransactions controls whether the transactions
// column exists in the file at all.
func WriteAggregates(path string, rows []Row, withTransactions bool) error {
	if !withTransactions {
		out := make([]aggregatesNoTxFileRow, len(rows))
		for i, r := range rows {
			out[i] = aggregatesNoTxFileRow{
				Timestamp:    r.Timestamp.UnixMilli(),
				Expiration:   r.Expiration.Format(expirationLayout),
				Strike:       r.Strike,
				ContractType: string(r.Type),
				Close:        r.Close,
				Volume:       r.Volume,
				Ticker:       r.Underlying,
			}
		}
		return writeParquet(path, out)
	}

	out := make([]aggregatesFileRow, len(rows))
	for i, r := range rows {
		out[i] = aggregatesFileRow{
			Timestamp:    r.Timestamp.UnixMilli(),
			Expiration:   r.Expiration.Format(expirationLayout),
			Strike:       r.Strike,
			ContractType: string(r.Type),
			Close:        r.Close,
			Volume:       r.Volume,
			Transactions: r.Transactions,
			Ticker:       r.Underlying,
		}
	}
	return writeParquet(path, out)
}

func writeParquet[T any](path string, rows []T) error {
	f, err := os.Create(path) // #nosec G304 -- test/tool output path
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := parquet.Write(f, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing parquet rows: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
