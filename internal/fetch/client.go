// Package fetch downloads date-partitioned chain flat files into a local
// archive. It is operator tooling; nothing in the serving path depends on it.
package fetch

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// Config controls retry and concurrency behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
	Concurrency    int
}

// DefaultConfig is used when NewClient receives no Config.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
	Concurrency:    4,
}

// APIError is a non-2xx response from the flat-file host.
type APIError struct {
	Status int
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flat-file host returned %d for %s", e.Status, e.URL)
}

// Client fetches per-date parquet files with retry, backoff, and a circuit
// breaker in front of the host.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
	config     Config
}

// NewClient creates a Client for the given flat-file base URL.
func NewClient(baseURL string, logger *logrus.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	settings := gobreaker.Settings{
		Name:        "FlatFileCircuitBreaker",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
		config:     cfg,
	}
}

// FileInfo describes one downloaded file.
type FileInfo struct {
	Path      string
	Bytes     int64
	SHA256    string
	FetchedAt time.Time
}

// dateURL is the flat-file layout: <base>/YYYY/MM/YYYY-MM-DD.parquet.
func (c *Client) dateURL(date time.Time) string {
	return fmt.Sprintf("%s/%s/%s.parquet",
		c.baseURL, date.Format("2006/01"), date.Format("2006-01-02"))
}

// FetchDate downloads one date's file into destDir, retrying transient
// failures with exponential backoff. Permanent errors (4xx other than 429)
// fail immediately.
func (c *Client) FetchDate(ctx context.Context, date time.Time, destDir string) (FileInfo, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	url := c.dateURL(date)
	dest := filepath.Join(destDir, date.Format("2006-01-02")+".parquet")

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := fetchCtx.Err(); err != nil {
			return FileInfo{}, fmt.Errorf("fetch %s canceled: %w", url, err)
		}

		info, err := c.fetchOnce(fetchCtx, url, dest)
		if err == nil {
			return info, nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == c.config.MaxRetries {
			break
		}
		c.logger.WithError(err).Warnf("Fetch attempt %d/%d for %s failed, retrying in %v",
			attempt+1, c.config.MaxRetries+1, url, backoff)
		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-fetchCtx.Done():
			return FileInfo{}, fmt.Errorf("fetch %s timed out during backoff: %w", url, fetchCtx.Err())
		}
	}

	return FileInfo{}, fmt.Errorf("fetching %s after %d attempts: %w", url, c.config.MaxRetries+1, lastErr)
}

// fetchOnce performs a single attempt through the circuit breaker.
func (c *Client) fetchOnce(ctx context.Context, url, dest string) (FileInfo, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.download(ctx, url, dest)
	})
	if err != nil {
		return FileInfo{}, err
	}
	info, ok := res.(FileInfo)
	if !ok {
		return FileInfo{}, errors.New("circuit breaker: type assertion failed")
	}
	return info, nil
}

func (c *Client) download(ctx context.Context, url, dest string) (FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FileInfo{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FileInfo{}, fmt.Errorf("requesting %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return FileInfo{}, &APIError{Status: resp.StatusCode, URL: url}
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp) // #nosec G304 -- dest comes from operator config
	if err != nil {
		return FileInfo{}, fmt.Errorf("creating %s: %w", tmp, err)
	}

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hasher), resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return FileInfo{}, fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return FileInfo{}, fmt.Errorf("renaming %s: %w", tmp, err)
	}

	return FileInfo{
		Path:      dest,
		Bytes:     n,
		SHA256:    hex.EncodeToString(hasher.Sum(nil)),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// FetchRange downloads every weekday in [start, end] not already present in
// the manifest, with bounded concurrency. It returns the number of files
// added. The whole run is tagged with one uuid for log correlation.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, destDir string, manifest *Manifest) (int, error) {
	runID := uuid.New().String()
	log := c.logger.WithField("run_id", runID)

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return 0, fmt.Errorf("creating dest dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)

	added := make(chan string, 1+int(end.Sub(start).Hours()/24))
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		key := day.Format("2006-01-02")
		if manifest.Has(key) {
			log.Debugf("Skipping %s, already in manifest", key)
			continue
		}

		day := day
		g.Go(func() error {
			info, err := c.FetchDate(ctx, day, destDir)
			if err != nil {
				return err
			}
			if err := manifest.Record(key, Entry{
				File:      filepath.Base(info.Path),
				Bytes:     info.Bytes,
				SHA256:    info.SHA256,
				RunID:     runID,
				FetchedAt: info.FetchedAt,
			}); err != nil {
				return fmt.Errorf("recording %s: %w", key, err)
			}
			added <- key
			log.Infof("Fetched %s (%d bytes)", key, info.Bytes)
			return nil
		})
	}

	err := g.Wait()
	close(added)
	count := len(added)
	if err != nil {
		return count, fmt.Errorf("fetch run %s: %w", runID, err)
	}
	return count, nil
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			c.logger.WithError(err).Warn("Failed to generate jitter")
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

// isTransientError reports whether a fetch failure is worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// The breaker will close on its own schedule; retrying sooner than
		// that only burns attempts.
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	// Network-level failures (refused, reset, DNS, timeouts) are transient.
	return true
}
