package cmd

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/kelly/journal"
)

func withMetricsAddr(t *testing.T, addr string) {
	t.Helper()
	prev := metricsAddr
	metricsAddr = addr
	t.Cleanup(func() { metricsAddr = prev })
}

func TestMetricsDisabled(t *testing.T) {
	withMetricsAddr(t, "")

	ms, err := startMetrics(&cobra.Command{})
	require.NoError(t, err)
	assert.Nil(t, ms)

	mem := &journal.Memory{}
	assert.Same(t, mem, ms.journal(mem, "rsi", "fixed"))
	assert.Nil(t, ms.journal(nil, "rsi", "fixed"))
	ms.stop()
}

func TestMetricsServed(t *testing.T) {
	withMetricsAddr(t, "127.0.0.1:0")

	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetErr(&buf)

	ms, err := startMetrics(c)
	require.NoError(t, err)
	require.NotNil(t, ms)
	defer ms.stop()

	mem := &journal.Memory{}
	j := ms.journal(mem, "rsi", "kelly")
	require.NoError(t, j.RecordRun(journal.RunRecord{ReturnPct: 0.01}))
	assert.Len(t, mem.Runs, 1)

	url := strings.TrimSpace(strings.TrimPrefix(buf.String(), "Serving metrics on "))
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `kelly_runs_completed_total{method="kelly",strategy="rsi"} 1`)
}

func TestMetricsBadAddr(t *testing.T) {
	withMetricsAddr(t, "not-an-address")

	_, err := startMetrics(&cobra.Command{})
	assert.ErrorContains(t, err, "metrics listener")
}
