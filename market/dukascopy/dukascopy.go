// Package dukascopy downloads historical tick data from the Dukascopy data
// feed and aggregates it into bars.
//
// The feed serves one LZMA compressed .bi5 file per symbol and hour. Each
// file holds 20 byte big endian records: millisecond offset into the hour,
// ask and bid in points, then ask and bid volume as float32.
package dukascopy

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz/lzma"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/kelly/market"
)

const DefaultBaseURL = "https://datafeed.dukascopy.com/datafeed"

const recordSize = 20

var ErrBadRecord = errors.New("truncated tick record")

type Tick struct {
	Time      time.Time
	Ask       float64
	Bid       float64
	AskVolume float64
	BidVolume float64
}

func (t Tick) Mid() float64 { return (t.Ask + t.Bid) / 2 }

// PointScale is the divisor turning raw points into prices.
func PointScale(symbol string) float64 {
	s := strings.ToUpper(symbol)
	if strings.HasSuffix(s, "JPY") || strings.HasPrefix(s, "XAU") || strings.HasPrefix(s, "XAG") {
		return 1e3
	}
	return 1e5
}

// HourURL is the feed location of one hour of ticks. The feed numbers months
// from zero.
func HourURL(base, symbol string, hour time.Time) string {
	hour = hour.UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%02dh_ticks.bi5",
		strings.TrimRight(base, "/"),
		strings.ToUpper(symbol),
		hour.Year(), int(hour.Month())-1, hour.Day(), hour.Hour())
}

// DecodeTicks decompresses one .bi5 file. An empty file is an hour without
// ticks.
func DecodeTicks(compressed []byte, hour time.Time, scale float64) ([]Tick, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	r, err := lzma.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	if len(raw)%recordSize != 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(raw), ErrBadRecord)
	}

	hour = hour.UTC().Truncate(time.Hour)
	ticks := make([]Tick, 0, len(raw)/recordSize)
	for off := 0; off < len(raw); off += recordSize {
		rec := raw[off : off+recordSize]
		ms := binary.BigEndian.Uint32(rec[0:4])
		ticks = append(ticks, Tick{
			Time:      hour.Add(time.Duration(ms) * time.Millisecond),
			Ask:       float64(binary.BigEndian.Uint32(rec[4:8])) / scale,
			Bid:       float64(binary.BigEndian.Uint32(rec[8:12])) / scale,
			AskVolume: float64(math.Float32frombits(binary.BigEndian.Uint32(rec[12:16]))),
			BidVolume: float64(math.Float32frombits(binary.BigEndian.Uint32(rec[16:20]))),
		})
	}
	return ticks, nil
}

// Client fetches hours in parallel. The zero value downloads from
// DefaultBaseURL without caching.
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	CacheDir string        // keeps raw .bi5 files; empty disables the cache
	Workers  int           // parallel downloads, default 4
	Delay    time.Duration // pause before each request
	Logger   *log.Logger   // nil discards
}

func (c *Client) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// Fetch returns the ticks in [start, end), oldest first. Hours the feed does
// not have are skipped.
func (c *Client) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]Tick, error) {
	start = start.UTC().Truncate(time.Hour)
	if !end.After(start) {
		return nil, fmt.Errorf("end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	var hours []time.Time
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		hours = append(hours, t)
	}

	workers := c.Workers
	if workers <= 0 {
		workers = 4
	}
	perHour := make([][]Tick, len(hours))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, h := range hours {
		g.Go(func() error {
			ticks, err := c.FetchHour(ctx, symbol, h)
			if err != nil {
				return err
			}
			perHour[i] = ticks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Tick
	for _, ticks := range perHour {
		for _, t := range ticks {
			if t.Time.Before(end) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// FetchHour returns one hour of ticks, nil when the feed has none.
func (c *Client) FetchHour(ctx context.Context, symbol string, hour time.Time) ([]Tick, error) {
	hour = hour.UTC().Truncate(time.Hour)
	data, err := c.load(ctx, symbol, hour)
	if err != nil {
		return nil, err
	}
	ticks, err := DecodeTicks(data, hour, PointScale(symbol))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", symbol, hour.Format("2006-01-02T15"), err)
	}
	return ticks, nil
}

func (c *Client) cachePath(symbol string, hour time.Time) string {
	return filepath.Join(c.CacheDir, strings.ToUpper(symbol),
		fmt.Sprintf("%04d", hour.Year()), fmt.Sprintf("%02d", hour.Month()), fmt.Sprintf("%02d", hour.Day()),
		fmt.Sprintf("%02dh_ticks.bi5", hour.Hour()))
}

func (c *Client) load(ctx context.Context, symbol string, hour time.Time) ([]byte, error) {
	var path string
	if c.CacheDir != "" {
		path = c.cachePath(symbol, hour)
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		}
	}

	data, found, err := c.download(ctx, symbol, hour)
	if err != nil || !found {
		return nil, err
	}
	if path != "" {
		if err := writeAtomic(path, data); err != nil {
			return nil, fmt.Errorf("cache %s: %w", path, err)
		}
	}
	return data, nil
}

func (c *Client) download(ctx context.Context, symbol string, hour time.Time) ([]byte, bool, error) {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	url := HourURL(base, symbol, hour)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", "kelly-trader/1.0")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logf("404   %s", url)
		return nil, false, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, false, fmt.Errorf("get %s: http status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", url, err)
	}
	c.logf("OK    %s (%d bytes)", url, len(data))
	return data, true, nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Aggregate builds mid-price bars of the given interval from ticks sorted by
// time. Volume is the sum of ask and bid volume. Intervals without ticks
// produce no bar.
func Aggregate(ticks []Tick, interval time.Duration) []market.Bar {
	var bars []market.Bar
	for _, t := range ticks {
		at := t.Time.Truncate(interval)
		p := t.Mid()
		n := len(bars)
		if n == 0 || !bars[n-1].Time.Equal(at) {
			bars = append(bars, market.Bar{Time: at, Open: p, High: p, Low: p, Close: p})
			n++
		}
		b := &bars[n-1]
		b.High = math.Max(b.High, p)
		b.Low = math.Min(b.Low, p)
		b.Close = p
		b.Volume += t.AskVolume + t.BidVolume
	}
	return bars
}
