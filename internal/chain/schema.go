package chain

import (
	"errors"
	"math"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/eddiefleurent/stamford_chains/internal/models"
)

// ErrUnknownSchema is returned at construction when the dataset matches
// neither supported schema variant.
var ErrUnknownSchema = errors.New("dataset matches no known schema: no recognized timestamp column")

// Variant identifies which of the two supported source schemas a dataset
// uses. Exactly one variant is detected per dataset; mixing variants within
// one file is not supported.
type Variant string

const (
	// SchemaTrades is the newer trade-level format: nanosecond epoch
	// sip_timestamp, nested details group for the contract, size for volume,
	// price for close. It carries no transaction count.
	SchemaTrades Variant = "trades"
	// SchemaAggregates is the older aggregate format: millisecond epoch
	// timestamp and flat expiration/strike/contract columns, with an
	// optional transactions column.
	SchemaAggregates Variant = "aggregates"
)

// Valid returns true if the Variant is one of the defined constants.
func (v Variant) Valid() bool {
	switch v {
	case SchemaTrades, SchemaAggregates:
		return true
	default:
		return false
	}
}

// tradesRow is the declared field mapping for SchemaTrades.
type tradesRow struct {
	SipTimestamp     int64        `parquet:"sip_timestamp"`
	Price            float64      `parquet:"price"`
	Size             int64        `parquet:"size"`
	Details          tradeDetails `parquet:"details"`
	UnderlyingTicker string       `parquet:"underlying_ticker,optional"`
}

type tradeDetails struct {
	ExpirationDate string  `parquet:"expiration_date"`
	StrikePrice    float64 `parquet:"strike_price"`
	ContractType   string  `parquet:"contract_type"`
}

// aggregatesRow is the declared field mapping for SchemaAggregates.
type aggregatesRow struct {
	Timestamp    int64   `parquet:"timestamp"`
	Expiration   string  `parquet:"expiration"`
	Strike       float64 `parquet:"strike"`
	ContractType string  `parquet:"contract_type"`
	Close        float64 `parquet:"close"`
	Volume       int64   `parquet:"volume"`
	Transactions int64   `parquet:"transactions,optional"`
	Ticker       string  `parquet:"ticker,optional"`
}

// detectVariant inspects the parquet schema's leaf columns and picks the
// variant. Detection order is deterministic: the trades marker column first,
// then the aggregates one.
func detectVariant(schema *parquet.Schema) (Variant, error) {
	if hasLeafColumn(schema, "sip_timestamp") {
		return SchemaTrades, nil
	}
	if hasLeafColumn(schema, "timestamp") {
		return SchemaAggregates, nil
	}
	return "", ErrUnknownSchema
}

// hasLeafColumn reports whether any leaf column path ends in name.
func hasLeafColumn(schema *parquet.Schema, name string) bool {
	for _, path := range schema.Columns() {
		if len(path) > 0 && path[len(path)-1] == name {
			return true
		}
	}
	return false
}

const expirationLayout = "2006-01-02"

// normalizeTrades converts raw trade-level rows into OptionRecords. Rows with
// an unparseable expiration or contract type are dropped; the skip count is
// reported to the caller for logging.
func normalizeTrades(rows []tradesRow, loc *time.Location, startMin, endMin int) (records []models.OptionRecord, skipped int) {
	records = make([]models.OptionRecord, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		ct, err := models.ParseContractType(row.Details.ContractType)
		if err != nil {
			skipped++
			continue
		}
		exp, err := time.ParseInLocation(expirationLayout, row.Details.ExpirationDate, loc)
		if err != nil {
			skipped++
			continue
		}
		ts := time.Unix(0, row.SipTimestamp).In(loc)
		rec := models.OptionRecord{
			Timestamp:  ts,
			Expiration: exp,
			Strike:     row.Details.StrikePrice,
			Type:       ct,
			Close:      row.Price,
			Volume:     row.Size,
			// The trades format has no transaction count; the traded size is
			// the fallback.
			Transactions: row.Size,
			Underlying:   row.UnderlyingTicker,
		}
		deriveFields(&rec, startMin, endMin)
		records = append(records, rec)
	}
	return records, skipped
}

// normalizeAggregates converts raw aggregate rows into OptionRecords.
// hasTransactions reports whether the source file carried a transactions
// column at all; when it did not, volume is copied in as the fallback.
func normalizeAggregates(rows []aggregatesRow, loc *time.Location, startMin, endMin int, hasTransactions bool) (records []models.OptionRecord, skipped int) {
	records = make([]models.OptionRecord, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		ct, err := models.ParseContractType(row.ContractType)
		if err != nil {
			skipped++
			continue
		}
		exp, err := time.ParseInLocation(expirationLayout, row.Expiration, loc)
		if err != nil {
			skipped++
			continue
		}
		tx := row.Transactions
		if !hasTransactions {
			tx = row.Volume
		}
		rec := models.OptionRecord{
			Timestamp:    time.UnixMilli(row.Timestamp).In(loc),
			Expiration:   exp,
			Strike:       row.Strike,
			Type:         ct,
			Close:        row.Close,
			Volume:       row.Volume,
			Transactions: tx,
			Underlying:   row.Ticker,
		}
		deriveFields(&rec, startMin, endMin)
		records = append(records, rec)
	}
	return records, skipped
}

// deriveFields fills the load-time derived fields on a record.
func deriveFields(rec *models.OptionRecord, startMin, endMin int) {
	if rec.Volume < 0 {
		rec.Volume = 0
	}
	if rec.Transactions < 0 {
		rec.Transactions = 0
	}
	rec.DaysToExpiry = daysBetweenMidnights(rec.Date(), rec.Expiration)
	mins := rec.Timestamp.Hour()*60 + rec.Timestamp.Minute()
	rec.MarketHours = mins >= startMin && mins <= endMin
}

// daysBetweenMidnights returns whole days from one midnight to another,
// negative when to precedes from. Rounding absorbs the 23- and 25-hour days
// introduced by DST transitions.
func daysBetweenMidnights(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
