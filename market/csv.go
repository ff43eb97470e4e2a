package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing the first CSV column.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVFeed reads bars from a CSV file with the columns
//
//	datetime,open,high,low,close[,volume]
//
// A header row is allowed. Rows are returned in file order; ordering is
// enforced by the consumer, not here.
type CSVFeed struct {
	rc   io.ReadCloser
	r    *csv.Reader
	line int

	sawFirst bool
}

// OpenCSV opens path as a bar feed.
func OpenCSV(path string) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	return NewCSVFeed(f), nil
}

// NewCSVFeed reads bars from rc and closes it on Close.
func NewCSVFeed(rc io.ReadCloser) *CSVFeed {
	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &CSVFeed{rc: rc, r: r}
}

func (f *CSVFeed) Close() error {
	if f.rc != nil {
		return f.rc.Close()
	}
	return nil
}

func (f *CSVFeed) Next() (Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Bar{}, false, nil
		}
		if err != nil {
			return Bar{}, false, err
		}
		f.line++
		if len(row) == 0 {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			h := strings.ToLower(strings.TrimSpace(row[0]))
			if h == "time" || h == "datetime" || h == "date" || h == "timestamp" {
				continue
			}
		}

		b, err := parseBarRow(row)
		if err != nil {
			return Bar{}, false, fmt.Errorf("line %d: %w", f.line, err)
		}
		return b, true, nil
	}
}

// LoadCSV reads every bar in path.
func LoadCSV(path string) ([]Bar, error) {
	f, err := OpenCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bars []Bar
	for {
		b, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return bars, nil
		}
		bars = append(bars, b)
	}
}

func parseBarRow(row []string) (Bar, error) {
	if len(row) < 5 {
		return Bar{}, fmt.Errorf("bad row (need datetime,open,high,low,close): %v", row)
	}

	t, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return Bar{}, err
	}

	var vals [5]float64
	n := 4
	if len(row) >= 6 {
		n = 5
	}
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad value %q: %w", row[i+1], err)
		}
		vals[i] = v
	}

	return Bar{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// WriteCSV writes bars with a header in the format CSVFeed reads.
func WriteCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"datetime", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
