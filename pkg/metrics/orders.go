package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records the order-fulfillment counters exposed on /metrics.
type OrderMetrics struct {
	groupsCreated  *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	stockRejected  prometheus.Counter
	batchShipSizes prometheus.Histogram
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	groups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_groups_created_total",
		Help: "Order groups created, by checkout source.",
	}, []string{"source"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions applied.",
	}, []string{"action"})
	stockRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "insufficient_stock_rejections_total",
		Help: "Checkout attempts rejected for insufficient stock.",
	})
	batchSizes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_ship_size",
		Help:    "Number of orders per accepted batch shipment.",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})
	reg.MustRegister(groups, transitions, stockRejected, batchSizes)
	return &OrderMetrics{
		groupsCreated:  groups,
		transitions:    transitions,
		stockRejected:  stockRejected,
		batchShipSizes: batchSizes,
	}
}

// IncGroupCreated counts one created order group for the named source ("cart" or "direct").
func (m *OrderMetrics) IncGroupCreated(source string) {
	if m == nil || m.groupsCreated == nil {
		return
	}
	m.groupsCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncTransition counts one applied transition for the named action.
func (m *OrderMetrics) IncTransition(action string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncStockRejection counts one insufficient-stock rejection.
func (m *OrderMetrics) IncStockRejection() {
	if m == nil || m.stockRejected == nil {
		return
	}
	m.stockRejected.Inc()
}

// ObserveBatchShipSize records the size of an accepted batch shipment.
func (m *OrderMetrics) ObserveBatchShipSize(size int) {
	if m == nil || m.batchShipSizes == nil {
		return
	}
	m.batchShipSizes.Observe(float64(size))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
