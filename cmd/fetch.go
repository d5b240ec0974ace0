package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ml-under-the-hood/traceplay/playback"
	"github.com/ml-under-the-hood/traceplay/playback/fetch"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

var (
	fetchAlgo    string        // Trace family to request
	fetchOut     string        // Output path for the fetched trace
	requestFile  string        // YAML request document merged over the defaults
	requestSets  []string      // path=value overrides applied last
	fetchTimeout time.Duration // Per-request timeout
	metricsAddr  string        // Address for the /metrics endpoint, empty to disable
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Request a trace from the algorithm service and save it",
	Run: func(cmd *cobra.Command, args []string) {
		req, err := buildRequest(fetchAlgo, requestFile, requestSets)
		if err != nil {
			logrus.Fatalf("Invalid request: %v", err)
		}
		client, stop := newFetchClient(cmd)
		defer stop()

		logrus.Infof("Fetching %s trace from %s", req.Endpoint(), cfg.Endpoint)
		tr, err := client.FetchTrace(cmd.Context(), req)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		data, err := trace.Encode(tr)
		if err != nil {
			logrus.Fatalf("Failed to encode trace: %v", err)
		}
		if fetchOut == "" || fetchOut == "-" {
			_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
			return
		}
		if err := os.WriteFile(fetchOut, data, 0o644); err != nil {
			logrus.Fatalf("Failed to write trace: %v", err)
		}
		logrus.Infof("Wrote %d-step %s trace to %s", tr.Len(), tr.Algo, fetchOut)
	},
}

// buildRequest starts from the service defaults for family, then merges the
// defaults file, an optional request file, and finally --set overrides.
func buildRequest(family, path string, sets []string) (fetch.Request, error) {
	req, err := fetch.DefaultRequest(family)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyRequestDefaults(family, req); err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading request file: %w", err)
		}
		if err := decodeRequestYAML(data, req); err != nil {
			return nil, fmt.Errorf("parsing request file %s: %w", path, err)
		}
	}
	if err := fetch.ApplyOverrides(req, sets); err != nil {
		return nil, err
	}
	return req, req.Validate()
}

// newFetchClient builds a client for the configured endpoint. When --metrics-addr
// is set, fetch metrics are served there until stop is called.
func newFetchClient(cmd *cobra.Command) (*fetch.Client, func()) {
	timeout := cfg.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = fetchTimeout
	}
	opts := []fetch.Option{fetch.WithTimeout(timeout)}
	stop := func() {}

	if metricsAddr != "" {
		metrics, err := fetch.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			logrus.Fatalf("Failed to register metrics: %v", err)
		}
		opts = append(opts, fetch.WithMetrics(metrics))
		stop = serveMetrics(metricsAddr, metrics)
	}
	return fetch.NewClient(cfg.Endpoint, opts...), stop
}

// serveMetrics exposes /metrics on addr and returns a function that shuts the server down.
func serveMetrics(addr string, metrics *fetch.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server on %s: %v", addr, err)
		}
	}()
	logrus.Infof("Serving metrics on http://%s/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// fetchIntoSession issues a ticketed fetch and hands the result to session.
// A response superseded by a newer ticket is dropped.
func fetchIntoSession(ctx context.Context, session *playback.Session, client *fetch.Client, req fetch.Request) error {
	ticket := session.Begin()
	tr, err := client.FetchTrace(ctx, req)
	if err != nil {
		session.Fail(ticket, err)
		return err
	}
	if !session.Deliver(ticket, tr) {
		logrus.Debugf("Discarded stale %s response (ticket %d)", req.Endpoint(), ticket)
	}
	return nil
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&fetchAlgo, "algo", trace.FamilyKMeans, "Trace family to request (kmeans, linreg, regularization, em)")
	cmd.Flags().StringVar(&requestFile, "request", "", "YAML request document merged over the defaults")
	cmd.Flags().StringArrayVar(&requestSets, "set", nil, "Request override as path=value, e.g. dataset.n_samples=500 (repeatable)")
	cmd.Flags().DurationVar(&fetchTimeout, "timeout", 2*time.Minute, "Per-request timeout (overrides defaults file)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}

func init() {
	addRequestFlags(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Output path for the trace JSON (stdout when empty or -)")
}
