package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	LoansOriginatedTotal *prometheus.CounterVec
	PaymentsTotal        *prometheus.CounterVec
	InstallmentsSettled  prometheus.Counter
	LedgerDrift          prometheus.Gauge
	LedgerDriftCustomers prometheus.Gauge
	LedgerChecked        prometheus.Gauge
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		LoansOriginatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_loans_originated_total",
				Help: "Total number of loan origination attempts by outcome.",
			},
			[]string{"status"},
		),
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_engine_payments_total",
				Help: "Total number of loan payment attempts by outcome.",
			},
			[]string{"status"},
		),
		InstallmentsSettled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_engine_installments_settled_total",
				Help: "Total number of installments settled by payments.",
			},
		),
		LedgerDrift: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loan_engine_ledger_drift_absolute",
				Help: "Sum over customers of |used credit - outstanding installments| from the last ledger report.",
			},
		),
		LedgerDriftCustomers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loan_engine_ledger_drifting_customers",
				Help: "Number of customers whose ledger drifted in the last ledger report.",
			},
		),
		LedgerChecked: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "loan_engine_ledger_customers_checked",
				Help: "Number of customers checked by the last ledger report.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordOrigination(status string) {
	Business.LoansOriginatedTotal.WithLabelValues(status).Inc()
}

func RecordPayment(status string, installmentsSettled int) {
	Business.PaymentsTotal.WithLabelValues(status).Inc()
	if installmentsSettled > 0 {
		Business.InstallmentsSettled.Add(float64(installmentsSettled))
	}
}

// RecordLedgerReport publishes the totals of one ledger report run. Per-customer
// detail is left to the job's logs.
func RecordLedgerReport(checked, drifting int, absoluteDrift float64) {
	Business.LedgerChecked.Set(float64(checked))
	Business.LedgerDriftCustomers.Set(float64(drifting))
	Business.LedgerDrift.Set(absoluteDrift)
}
