package pubfront

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type appMetrics struct {
	cacheResults  *prometheus.CounterVec
	loadMore      *prometheus.CounterVec
	revalidations prometheus.Counter
}

func newAppMetrics(reg prometheus.Registerer) *appMetrics {
	m := &appMetrics{
		cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubfront",
			Name:      "page_cache_requests_total",
			Help:      "Page cache lookups by cache and result (hit, stale, miss)",
		}, []string{"cache", "result"}),
		loadMore: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubfront",
			Name:      "load_more_requests_total",
			Help:      "Load-more requests by outcome",
		}, []string{"outcome"}),
		revalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubfront",
			Name:      "revalidations_total",
			Help:      "Accepted revalidate webhook calls",
		}),
	}
	reg.MustRegister(m.cacheResults, m.loadMore, m.revalidations)
	return m
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (a *App) handleMetrics() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
}
