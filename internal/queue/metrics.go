package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the prometheus collectors exposed by a queue Manager,
// grounded on the teacher's internal/autoupdate/queue_metrics.go gauge
// pattern, generalized from an active/suspended split to a queue-size
// gauge covering all admitted items.
type Metrics struct {
	QueueSize      *prometheus.GaugeVec
	PromotionCount prometheus.Counter
}

var (
	sharedMetricsOnce sync.Once
	sharedMetrics     *Metrics
)

// newMetrics returns the collectors shared by every Manager in the
// process, registering them on the first call only.
func newMetrics() *Metrics {
	sharedMetricsOnce.Do(func() { sharedMetrics = registerMetrics() })
	return sharedMetrics
}

func registerMetrics() *Metrics {
	return &Metrics{
		QueueSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bert_e",
			Subsystem: "queue",
			Name:      "size",
			Help:      "Number of pull requests currently admitted to the merge queue.",
		}, nil),
		PromotionCount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "bert_e",
			Subsystem: "queue",
			Name:      "promotions_total",
			Help:      "Number of queue promotion runs that advanced at least one destination.",
		}),
	}
}
