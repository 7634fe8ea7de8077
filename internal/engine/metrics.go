package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_house_operations_total",
		Help: "Engine operations by name and result.",
	}, []string{"op", "result"})

	activeOrdersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auction_house_active_orders",
		Help: "Orders currently listed.",
	})

	journalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_house_journal_failures_total",
		Help: "Committed operations whose journal write failed.",
	})
)

func observe(op string, err error) {
	result := "success"
	if err != nil {
		result = "fail"
	}
	opCounter.WithLabelValues(op, result).Inc()
}
