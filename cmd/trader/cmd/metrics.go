package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/kelly/journal"
	"github.com/rustyeddy/kelly/metrics"
)

var metricsAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9090)")
}

// metricsServer serves /metrics for the lifetime of one command. A nil
// server records nothing.
type metricsServer struct {
	m   *metrics.Metrics
	srv *http.Server
}

func startMetrics(cmd *cobra.Command) (*metricsServer, error) {
	if metricsAddr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	m := metrics.New("")
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log := newLogger("[metrics] ")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("serve: %v", err)
		}
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving metrics on http://%s/metrics\n", ln.Addr())
	return &metricsServer{m: m, srv: srv}, nil
}

// journal adds the metrics recorder for one run to j.
func (s *metricsServer) journal(j journal.Journal, strategy, method string) journal.Journal {
	if s == nil {
		return j
	}
	mj := s.m.Journal(strategy, method)
	if j == nil {
		return mj
	}
	return journal.Multi{j, mj}
}

func (s *metricsServer) stop() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.srv.Shutdown(ctx)
}
