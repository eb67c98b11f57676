package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the venue's Prometheus metrics. One collector is
// shared by the engine and the outer surfaces.
type Collector struct {
	registry *prometheus.Registry

	OrdersProcessed *prometheus.CounterVec
	TradesTotal     *prometheus.CounterVec
	TradeVolume     *prometheus.CounterVec
	MatchLatency    prometheus.Histogram
	BookDepth       *prometheus.GaugeVec
	ActiveSymbols   prometheus.Gauge
	WSClients       prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		OrdersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidar_orders_processed_total",
			Help: "Orders that completed dispatch, including those producing no trades.",
		}, []string{"symbol", "type", "side"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidar_trades_total",
			Help: "Trades produced by matching.",
		}, []string{"symbol"}),
		TradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidar_trade_volume_total",
			Help: "Matched quantity, summed per symbol.",
		}, []string{"symbol"}),
		MatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidar_match_latency_seconds",
			Help:    "Wall time of one match call under the book lock.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vidar_book_depth_levels",
			Help: "Live price levels per side of each book.",
		}, []string{"symbol", "side"}),
		ActiveSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vidar_active_symbols",
			Help: "Symbols with an order book.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vidar_ws_clients",
			Help: "Connected market-data clients.",
		}),
	}

	c.registry.MustRegister(
		c.OrdersProcessed,
		c.TradesTotal,
		c.TradeVolume,
		c.MatchLatency,
		c.BookDepth,
		c.ActiveSymbols,
		c.WSClients,
	)
	return c
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
