package metrics

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openfpv/radiolink/internal/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// ListenDefault only listens locally, use ":9100" to listen on all interfaces
	ListenDefault = "127.0.0.1:9100"
	PathDefault   = "/metrics"

	listenEnv = "RXLINK_PROM_LISTEN"
	pathEnv   = "RXLINK_PROM_PATH"

	maxRequestsInFlight = 10
	maxPathLength       = 50
	shutdownTimeout     = time.Second
)

// NewHandler serves the metrics gathered by g
func NewHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics:   true,
		MaxRequestsInFlight: maxRequestsInFlight,
	})
}

// NewRegistry registers the collector of source, along with the Go runtime
// and process collectors
func NewRegistry(source Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		NewCollector(source),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering metrics collector")
		}
	}
	return reg, nil
}

// Serve serves the metrics of g on listen and path until ctx is done
func Serve(ctx context.Context, listen, path string, g prometheus.Gatherer, logger utils.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, NewHandler(g))
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Infof("Prometheus metrics listening on %s%s", listen, path)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return errors.Wrap(err, "serving metrics")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ValidateListenAddress accepts host:port addresses, the host may be empty
func ValidateListenAddress(addr string) bool {
	if addr == "" {
		return false
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	return port != ""
}

// ValidateMetricsPath accepts short absolute paths without whitespace
func ValidateMetricsPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	if len(path) > maxPathLength {
		return false
	}
	return !strings.ContainsAny(path, " \t\r\n")
}

// EnvironmentOverride returns listen and path, overridden by the
// RXLINK_PROM_LISTEN and RXLINK_PROM_PATH environment variables when they
// are valid
func EnvironmentOverride(listen, path string, logger utils.Logger) (string, string) {
	if value, ok := os.LookupEnv(listenEnv); ok {
		if ValidateListenAddress(value) {
			listen = value
		} else {
			logger.Errorf("Invalid %s value %q, using %q", listenEnv, value, listen)
		}
	}
	if value, ok := os.LookupEnv(pathEnv); ok {
		if ValidateMetricsPath(value) {
			path = value
		} else {
			logger.Errorf("Invalid %s value %q, using %q", pathEnv, value, path)
		}
	}
	return listen, path
}
