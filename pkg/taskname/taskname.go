// Package taskname is the registry of asynq task type names shared between
// enqueuers and workers.
package taskname

const (
	// MetricsAggregateDaily computes one organization's DailyMetric row for a
	// target date.
	MetricsAggregateDaily = "metrics:aggregate:daily"
)
