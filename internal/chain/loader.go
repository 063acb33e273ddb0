// Package chain loads a historical options chain dataset from columnar
// storage into memory once and serves filtered per-date slices with derived
// analytics. The backing store is immutable after construction, so a single
// Loader is safe for concurrent readers.
package chain

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stamford_chains/internal/models"
)

// Session band defaults, minutes past midnight (09:30-16:00).
const (
	defaultSessionStart = 9*60 + 30
	defaultSessionEnd   = 16 * 60
)

// Options configures a Loader. The zero value gets sensible defaults: the
// America/New_York session 09:30-16:00 and a fresh logrus logger.
type Options struct {
	Logger *logrus.Logger
	// Location is the exchange time zone timestamps are normalized into.
	Location *time.Location
	// SessionStart and SessionEnd bound the regular session band, in minutes
	// past midnight, both inclusive.
	SessionStart int
	SessionEnd   int
}

// Loader holds the entire normalized dataset in memory. All state is written
// once during New and read-only afterwards; per-query results are fresh
// copies and never alias the backing slice.
type Loader struct {
	logger     *logrus.Logger
	loc        *time.Location
	startMin   int
	endMin     int
	variant    Variant
	underlying string
	fileBytes  int64
	records    []models.OptionRecord
}

// New eagerly reads the dataset at path, detects the schema variant, and
// normalizes every row. It fails with ErrUnknownSchema when neither supported
// variant is present, and with an I/O error when the file is unreadable.
func New(path string, opts ...Options) (*Loader, error) {
	opt := Options{}
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Logger == nil {
		opt.Logger = logrus.New()
	}
	if opt.Location == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			return nil, fmt.Errorf("loading default exchange timezone: %w", err)
		}
		opt.Location = loc
	}
	if opt.SessionStart == 0 && opt.SessionEnd == 0 {
		opt.SessionStart = defaultSessionStart
		opt.SessionEnd = defaultSessionEnd
	}
	if opt.SessionStart >= opt.SessionEnd {
		return nil, fmt.Errorf("session band start %d must precede end %d", opt.SessionStart, opt.SessionEnd)
	}

	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			opt.Logger.WithError(cerr).Warn("closing dataset file")
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("reading parquet footer: %w", err)
	}

	variant, err := detectVariant(pf.Schema())
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	l := &Loader{
		logger:    opt.Logger,
		loc:       opt.Location,
		startMin:  opt.SessionStart,
		endMin:    opt.SessionEnd,
		variant:   variant,
		fileBytes: info.Size(),
	}

	var skipped int
	switch variant {
	case SchemaTrades:
		rows, err := parquet.Read[tradesRow](f, info.Size())
		if err != nil {
			return nil, fmt.Errorf("reading trades rows: %w", err)
		}
		l.records, skipped = normalizeTrades(rows, l.loc, l.startMin, l.endMin)
	case SchemaAggregates:
		rows, err := parquet.Read[aggregatesRow](f, info.Size())
		if err != nil {
			return nil, fmt.Errorf("reading aggregate rows: %w", err)
		}
		hasTx := hasLeafColumn(pf.Schema(), "transactions")
		l.records, skipped = normalizeAggregates(rows, l.loc, l.startMin, l.endMin, hasTx)
	}

	// Stable chronological order gives every query a deterministic base.
	sort.SliceStable(l.records, func(i, j int) bool {
		return l.records[i].Timestamp.Before(l.records[j].Timestamp)
	})

	for i := range l.records {
		if l.records[i].Underlying != "" {
			l.underlying = l.records[i].Underlying
			break
		}
	}

	l.logger.WithFields(logrus.Fields{
		"path":    path,
		"schema":  string(variant),
		"rows":    len(l.records),
		"skipped": skipped,
		"bytes":   info.Size(),
	}).Info("chain dataset loaded")

	return l, nil
}

// RowCount returns the number of normalized rows held in memory. This is the
// dominant operational constraint of the loader, so it is exposed directly.
func (l *Loader) RowCount() int { return len(l.records) }

// SizeBytes returns the on-disk size of the source dataset file.
func (l *Loader) SizeBytes() int64 { return l.fileBytes }

// SchemaVariant returns the detected source schema.
func (l *Loader) SchemaVariant() Variant { return l.variant }

// Underlying returns the underlying ticker carried by the dataset, or "" when
// the source had no ticker column.
func (l *Loader) Underlying() string { return l.underlying }

// FirstDate returns the earliest calendar date in the dataset. ok is false
// for an empty dataset.
func (l *Loader) FirstDate() (date time.Time, ok bool) {
	if len(l.records) == 0 {
		return time.Time{}, false
	}
	return l.records[0].Date(), true
}

// LastDate returns the latest calendar date in the dataset. ok is false for
// an empty dataset.
func (l *Loader) LastDate() (date time.Time, ok bool) {
	if len(l.records) == 0 {
		return time.Time{}, false
	}
	return l.records[len(l.records)-1].Date(), true
}

// Location returns the exchange time zone the loader normalizes into.
func (l *Loader) Location() *time.Location { return l.loc }

// midnight truncates t to its calendar date in the loader's location.
func (l *Loader) midnight(t time.Time) time.Time {
	y, m, d := t.In(l.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, l.loc)
}
