// Package metrics holds the prometheus collectors shared across
// packages that do not otherwise own a metrics file of their own
// (internal/queue has its own gauge set next to the manager it
// instruments). Grounded on the teacher's internal/autoupdate/metrics.go
// metricCollector pattern: a package-level singleton built with
// promauto, label helpers next to the collector, Inc methods that log
// and swallow GetMetricWith errors instead of panicking.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/bert-e/internal/logfields"
)

const namespace = "bert_e"

const (
	jobsTotalMetricName      = "dispatcher_jobs_total"
	gatingOutcomesMetricName = "gating_outcomes_total"
)

const (
	repositoryLabel = "repository"
	kindLabel       = "kind"
	statusLabel     = "status"
	codeLabel       = "status_code"
)

type Collector struct {
	logger *zap.Logger

	jobsTotal      *prometheus.CounterVec
	gatingOutcomes *prometheus.CounterVec
}

var shared = newCollector()

// Shared returns the process-wide metrics collector.
func Shared() *Collector {
	return shared
}

func newCollector() *Collector {
	return &Collector{
		logger: zap.L().Named("metrics"),

		jobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      jobsTotalMetricName,
				Help:      "count of dispatcher jobs by kind and terminal status",
			},
			[]string{repositoryLabel, kindLabel, statusLabel},
		),

		gatingOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      gatingOutcomesMetricName,
				Help:      "count of gating evaluator outcomes by status code",
			},
			[]string{repositoryLabel, codeLabel},
		),
	}
}

func (c *Collector) logGetMetricFailed(metricName string, err error) {
	c.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

// JobCompletedInc records one terminal dispatcher job outcome.
func (c *Collector) JobCompletedInc(repository, kind, status string) {
	cnt, err := c.jobsTotal.GetMetricWith(prometheus.Labels{
		repositoryLabel: repository,
		kindLabel:       kind,
		statusLabel:     status,
	})
	if err != nil {
		c.logGetMetricFailed(jobsTotalMetricName, err)
		return
	}

	cnt.Inc()
}

// GatingOutcomeInc records one evaluator decision by its status code name.
func (c *Collector) GatingOutcomeInc(repository, code string) {
	cnt, err := c.gatingOutcomes.GetMetricWith(prometheus.Labels{
		repositoryLabel: repository,
		codeLabel:       code,
	})
	if err != nil {
		c.logGetMetricFailed(gatingOutcomesMetricName, err)
		return
	}

	cnt.Inc()
}
