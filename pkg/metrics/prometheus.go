package metrics

import (
	"net/http"
	"time"

	"atmledger/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Collector exports withdrawal outcomes on its own registry.
type Collector struct {
	registry    *prometheus.Registry
	withdrawals *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	commission  *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		withdrawals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atm_withdrawals_total",
			Help: "Withdrawal attempts by execution mode and outcome",
		}, []string{"mode", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "atm_withdrawal_duration_seconds",
			Help:    "Time taken to execute a withdrawal",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		commission: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atm_commission_collected_total",
			Help: "Commission charged on completed withdrawals",
		}, []string{"mode"}),
	}
}

func (c *Collector) RecordWithdrawal(mode domain.Mode, outcome string, took time.Duration, commission decimal.Decimal) {
	c.withdrawals.WithLabelValues(string(mode), outcome).Inc()
	c.duration.WithLabelValues(string(mode)).Observe(took.Seconds())
	if commission.IsPositive() {
		c.commission.WithLabelValues(string(mode)).Add(commission.InexactFloat64())
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
