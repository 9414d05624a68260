package stats

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vx-labs/testsite/testsite"
	"go.uber.org/zap"
)

var (
	prometheusMetricsFactory promauto.Factory = promauto.With(prometheus.DefaultRegisterer)
)
var (
	PageLoads = prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
		Name: "testsite_page_loads_total",
		Help: "The total count of simulated page loads.",
	})
	PageChecks = prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
		Name: "testsite_page_auth_checks_total",
		Help: "The total count of page authentication checks.",
	})
	ProtectedPageNotices = prometheusMetricsFactory.NewCounter(prometheus.CounterOpts{
		Name: "testsite_protected_page_notices_total",
		Help: "The total count of protected page notices emitted.",
	})
	ConsoleClients = prometheusMetricsFactory.NewGauge(prometheus.GaugeOpts{
		Name: "testsite_console_clients",
		Help: "The number of websocket console clients connected.",
	})
	ServedRequests = prometheusMetricsFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "testsite_http_requests_total",
		Help: "The total count of HTTP requests served by the fixture site.",
	}, []string{"kind"})
)

func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// ListenAndServe serves /metrics until ctx is cancelled.
func ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),
		Handler: Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			testsite.L(ctx).Debug("metrics server shutdown failed", zap.Error(err))
		}
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
