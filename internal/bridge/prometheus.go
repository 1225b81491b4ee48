package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portalnetwork/bridge/libs/log"
	"github.com/portalnetwork/bridge/libs/service"
)

// MetricsServer serves the prometheus scrape endpoint for the run. It stops
// when the context it was started with is canceled.
type MetricsServer struct {
	service.BaseService
	logger log.Logger

	addr string
	srv  *http.Server
}

func NewMetricsServer(logger log.Logger, addr string) *MetricsServer {
	s := &MetricsServer{logger: logger, addr: addr}
	s.BaseService = *service.NewBaseService(logger, "metrics", s)
	return s
}

func (s *MetricsServer) OnStart(ctx context.Context) error {
	s.srv = &http.Server{
		Addr: s.addr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer,
			promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "addr", s.addr, "err", err)
		}
	}()
	return nil
}

func (s *MetricsServer) OnStop() {
	sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		s.logger.Error("metrics server shutdown failed", "err", err)
	}
}
