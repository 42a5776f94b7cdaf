package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SalesMetrics counts register activity. A nil *SalesMetrics records nothing.
type SalesMetrics struct {
	SalesTotal         prometheus.Counter
	SaleUnitsTotal     prometheus.Counter
	SaleAmount         prometheus.Histogram
	CatalogFilesTotal  *prometheus.CounterVec
	StatsWriteFailures prometheus.Counter
}

// NewSalesMetrics registers the register collectors on reg.
func NewSalesMetrics(namespace string, reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &SalesMetrics{
		SalesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_total",
			Help:      "Number of committed sales that sold at least one unit.",
		}),
		SaleUnitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_units_total",
			Help:      "Units sold across all sales.",
		}),
		SaleAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_amount",
			Help:      "Charged amount per sale.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250, 500},
		}),
		CatalogFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_files_total",
			Help:      "Catalog save and open attempts by outcome.",
		}, []string{"op", "result"}),
		StatsWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_write_failures_total",
			Help:      "Sales whose statistics could not be written.",
		}),
	}
	m.SalesTotal = register(reg, m.SalesTotal)
	m.SaleUnitsTotal = register(reg, m.SaleUnitsTotal)
	m.SaleAmount = register(reg, m.SaleAmount)
	m.CatalogFilesTotal = register(reg, m.CatalogFilesTotal)
	m.StatsWriteFailures = register(reg, m.StatsWriteFailures)
	return m
}

// ObserveSale records one committed sale.
func (m *SalesMetrics) ObserveSale(units int, amount decimal.Decimal) {
	if m == nil || units == 0 {
		return
	}
	m.SalesTotal.Inc()
	m.SaleUnitsTotal.Add(float64(units))
	m.SaleAmount.Observe(amount.InexactFloat64())
}

// FileOp records a save or open attempt.
func (m *SalesMetrics) FileOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CatalogFilesTotal.WithLabelValues(op, result).Inc()
}

// StatsWriteFailed records a statistics write that did not complete.
func (m *SalesMetrics) StatsWriteFailed() {
	if m == nil {
		return
	}
	m.StatsWriteFailures.Inc()
}
