package dukascopy

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz/lzma"
)

var hour0 = time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC)

type rawTick struct {
	ms       uint32
	ask, bid uint32
	av, bv   float32
}

func bi5(t *testing.T, ticks ...rawTick) []byte {
	t.Helper()
	var raw bytes.Buffer
	for _, tk := range ticks {
		var rec [recordSize]byte
		binary.BigEndian.PutUint32(rec[0:4], tk.ms)
		binary.BigEndian.PutUint32(rec[4:8], tk.ask)
		binary.BigEndian.PutUint32(rec[8:12], tk.bid)
		binary.BigEndian.PutUint32(rec[12:16], math.Float32bits(tk.av))
		binary.BigEndian.PutUint32(rec[16:20], math.Float32bits(tk.bv))
		raw.Write(rec[:])
	}

	var out bytes.Buffer
	w, err := lzma.NewWriter(&out)
	require.NoError(t, err)
	_, err = w.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return out.Bytes()
}

func TestHourURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://example.com/feed/EURUSD/2024/02/05/13h_ticks.bi5",
		HourURL("https://example.com/feed/", "eurusd", hour0))
	assert.Equal(t,
		DefaultBaseURL+"/USDJPY/2024/00/01/00h_ticks.bi5",
		HourURL(DefaultBaseURL, "USDJPY", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPointScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol string
		want   float64
	}{
		{"EURUSD", 1e5},
		{"usdjpy", 1e3},
		{"XAUUSD", 1e3},
		{"GBPUSD", 1e5},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PointScale(tt.symbol))
		})
	}
}

func TestDecodeTicks(t *testing.T) {
	t.Parallel()

	data := bi5(t,
		rawTick{ms: 0, ask: 108512, bid: 108510, av: 1.5, bv: 2},
		rawTick{ms: 61_500, ask: 108520, bid: 108516, av: 0.5, bv: 0.25},
	)

	ticks, err := DecodeTicks(data, hour0, 1e5)
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	assert.True(t, ticks[0].Time.Equal(hour0))
	assert.InDelta(t, 1.08512, ticks[0].Ask, 1e-12)
	assert.InDelta(t, 1.08510, ticks[0].Bid, 1e-12)
	assert.InDelta(t, 1.08511, ticks[0].Mid(), 1e-12)
	assert.Equal(t, 1.5, ticks[0].AskVolume)
	assert.Equal(t, 2.0, ticks[0].BidVolume)
	assert.True(t, ticks[1].Time.Equal(hour0.Add(61*time.Second+500*time.Millisecond)))

	none, err := DecodeTicks(nil, hour0, 1e5)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = DecodeTicks([]byte("not lzma"), hour0, 1e5)
	assert.Error(t, err)
}

func TestDecodeTicksTruncated(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w, err := lzma.NewWriter(&out)
	require.NoError(t, err)
	_, err = w.Write(make([]byte, recordSize+3))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = DecodeTicks(out.Bytes(), hour0, 1e5)
	assert.ErrorIs(t, err, ErrBadRecord)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	at := func(m int) time.Time { return hour0.Add(time.Duration(m) * time.Minute) }
	ticks := []Tick{
		{Time: at(0), Ask: 1.0, Bid: 1.0, AskVolume: 1},
		{Time: at(10), Ask: 1.3, Bid: 1.1, BidVolume: 2},
		{Time: at(20), Ask: 0.9, Bid: 0.9},
		{Time: at(59), Ask: 1.1, Bid: 1.1},
		{Time: at(200), Ask: 2, Bid: 2},
	}

	bars := Aggregate(ticks, time.Hour)
	require.Len(t, bars, 2, "hours without ticks produce no bar")

	b := bars[0]
	assert.True(t, b.Time.Equal(hour0))
	assert.Equal(t, 1.0, b.Open)
	assert.InDelta(t, 1.2, b.High, 1e-12)
	assert.Equal(t, 0.9, b.Low)
	assert.Equal(t, 1.1, b.Close)
	assert.Equal(t, 3.0, b.Volume)

	assert.True(t, bars[1].Time.Equal(hour0.Add(3*time.Hour)))
	assert.Equal(t, 2.0, bars[1].Open)

	assert.Empty(t, Aggregate(nil, time.Hour))
}

func TestClientFetch(t *testing.T) {
	t.Parallel()

	h1 := bi5(t, rawTick{ms: 1000, ask: 100000, bid: 100000})
	h3 := bi5(t, rawTick{ms: 0, ask: 101000, bid: 101000}, rawTick{ms: 3_599_000, ask: 102000, bid: 102000})

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case "/EURUSD/2024/02/05/13h_ticks.bi5":
			w.Write(h1)
		case "/EURUSD/2024/02/05/14h_ticks.bi5":
			// no ticks this hour
		case "/EURUSD/2024/02/05/15h_ticks.bi5":
			w.Write(h3)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cache := t.TempDir()
	c := &Client{BaseURL: srv.URL, HTTP: srv.Client(), CacheDir: cache, Workers: 2}

	ticks, err := c.Fetch(context.Background(), "EURUSD", hour0, hour0.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, ticks, 3)
	assert.True(t, ticks[0].Time.Equal(hour0.Add(time.Second)))
	assert.Equal(t, 1.0, ticks[0].Bid)
	assert.Equal(t, 1.02, ticks[2].Ask)
	assert.EqualValues(t, 4, requests.Load())

	_, err = os.Stat(filepath.Join(cache, "EURUSD", "2024", "03", "05", "13h_ticks.bi5"))
	require.NoError(t, err)

	// served from the cache, empty hour included; only the missing hour is asked for again
	again, err := c.Fetch(context.Background(), "EURUSD", hour0, hour0.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ticks, again)
	assert.EqualValues(t, 5, requests.Load())
}

func TestClientFetchErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	_, err := c.Fetch(context.Background(), "EURUSD", hour0, hour0.Add(2*time.Hour))
	assert.ErrorContains(t, err, "http status 500")

	_, err = c.Fetch(context.Background(), "EURUSD", hour0, hour0)
	assert.Error(t, err)
}
