package syncer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// reportsDownloadedTotal counts reports fetched and ledgered
	reportsDownloadedTotal prometheus.Counter

	// reportsSkippedTotal counts reports not downloaded, by reason
	reportsSkippedTotal *prometheus.CounterVec

	// fetchErrorsTotal counts per-report fetch/write failures
	fetchErrorsTotal prometheus.Counter

	// notificationsPublishedTotal counts successful publishes
	notificationsPublishedTotal prometheus.Counter

	// notifyErrorsTotal counts failed publishes
	notifyErrorsTotal prometheus.Counter

	// downloadDuration tracks fetch-to-ledger latency per report
	downloadDuration prometheus.Histogram
)

// InitMetrics registers all Prometheus metrics for the sync driver.
// This should be called once at application startup.
func InitMetrics() {
	metricsOnce.Do(func() {
		reportsDownloadedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "reportsync_reports_downloaded_total",
			Help: "Total number of reports fetched, written and ledgered",
		})

		reportsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportsync_reports_skipped_total",
				Help: "Total number of reports skipped, by reason",
			},
			[]string{"reason"},
		)

		fetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "reportsync_fetch_errors_total",
			Help: "Total number of per-report fetch or write failures",
		})

		notificationsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "reportsync_notifications_published_total",
			Help: "Total number of notifications published",
		})

		notifyErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "reportsync_notify_errors_total",
			Help: "Total number of failed notification publishes",
		})

		downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reportsync_download_duration_seconds",
			Help:    "Duration from fetch start to ledger record per report",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		})
	})
}

func recordDownloaded(elapsed time.Duration) {
	if reportsDownloadedTotal != nil {
		reportsDownloadedTotal.Inc()
	}
	if downloadDuration != nil {
		downloadDuration.Observe(elapsed.Seconds())
	}
}

// reason: "already_synced", "disk_low"
func recordSkipped(reason string) {
	if reportsSkippedTotal != nil {
		reportsSkippedTotal.WithLabelValues(reason).Inc()
	}
}

func recordFetchError() {
	if fetchErrorsTotal != nil {
		fetchErrorsTotal.Inc()
	}
}

func recordPublished() {
	if notificationsPublishedTotal != nil {
		notificationsPublishedTotal.Inc()
	}
}

func recordNotifyError() {
	if notifyErrorsTotal != nil {
		notifyErrorsTotal.Inc()
	}
}
