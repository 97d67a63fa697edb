package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hcsc",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hcsc",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// LendingOps: 貸出/返却/出庫 の結果別件数
	LendingOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hcsc",
		Name:      "lending_operations_total",
		Help:      "Borrow/return/export operations by outcome.",
	}, []string{"op", "outcome"})

	ItemsMoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hcsc",
		Name:      "stock_items_moved_total",
		Help:      "Units moved in or out of stock.",
	}, []string{"direction"})

	OverdueMarked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hcsc",
		Name:      "records_marked_overdue_total",
		Help:      "Records promoted to overdue by the sweeper.",
	})
)

var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		httpRequests, httpDuration, LendingOps, ItemsMoved, OverdueMarked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Middleware: ルート単位のリクエスト数とレイテンシ
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Op: 業務操作の結果を数える。err が nil なら ok
func Op(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LendingOps.WithLabelValues(op, outcome).Inc()
}
