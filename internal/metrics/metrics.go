package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "books_total", Help: "Order-book updates accepted by the engine"},
		[]string{"instrument"},
	)
	BooksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "books_dropped_total", Help: "Order-book updates discarded before reaching a strategy"},
		[]string{"reason"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"instrument", "side", "purpose"},
	)
	OrderRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_rejects_total", Help: "Order rejections reported by the venue"},
		[]string{"purpose"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fills_total", Help: "Executions received"},
		[]string{"instrument"},
	)
	FaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "faults_total", Help: "Session faults by kind"},
		[]string{"kind"},
	)
	RecoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "recoveries_total", Help: "Completed stop/reset/restart cycles"},
	)
	KeepalivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "keepalives_total", Help: "Keepalive requests by result"},
		[]string{"result"},
	)
	EngineState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "engine_state", Help: "Current order lifecycle state (0=warmup .. 4=wait_for_close)"},
	)
)

func init() {
	prometheus.MustRegister(BooksTotal, BooksDropped, OrdersTotal, OrderRejects, FillsTotal)
	prometheus.MustRegister(FaultsTotal, RecoveriesTotal, KeepalivesTotal, EngineState)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
