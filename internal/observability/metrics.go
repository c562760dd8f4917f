package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "ledger",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent ledger entry persisted to Postgres.",
	})
	emissionRecordedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "ledger",
		Name:      "entries_recorded_total",
		Help:      "Number of ledger entries recorded, labeled by activity type.",
	}, []string{"activity_type"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, emissionRecordedCounter)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordEntryRecorded counts an accepted ledger entry by type.
func RecordEntryRecorded(activityType string) {
	emissionRecordedCounter.WithLabelValues(activityType).Inc()
}
