package metrics

import "time"

// DailyMetric is one organization's aggregate for one calendar day. The row
// is upserted by its composite key, never appended: re-running aggregation
// for the same key rewrites the same values. It deliberately carries no
// bookkeeping timestamps so a re-run over an unchanged event log produces an
// identical row.
type DailyMetric struct {
	OrganizationID    string    `gorm:"column:organization_id;primaryKey" json:"organizationId"`
	Date              time.Time `gorm:"column:date;primaryKey" json:"date"`
	TasksCreated      int       `gorm:"column:tasks_created;not null" json:"tasksCreated"`
	TasksCompleted    int       `gorm:"column:tasks_completed;not null" json:"tasksCompleted"`
	AvgLeadTimeHours  *float64  `gorm:"column:avg_lead_time_hours" json:"avgLeadTimeHours"`
	OpenTasksEndOfDay int       `gorm:"column:open_tasks_end_of_day;not null" json:"openTasksEndOfDay"`
}

func (DailyMetric) TableName() string { return "task_metrics_daily" }

// RollingStats is the on-demand 30-day snapshot for an organization. It is
// computed, never persisted.
type RollingStats struct {
	OrganizationID    string  `json:"organizationId"`
	TasksCreated30d   int     `json:"tasksCreated30d"`
	TasksCompleted30d int     `json:"tasksCompleted30d"`
	AvgLeadTimeHours  float64 `json:"avgLeadTimeHours"`
	CompletionRatio   float64 `json:"completionRatio"`
	OpenTasksNow      int     `json:"openTasksNow"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Yesterday is the default aggregation target.
func Yesterday() time.Time {
	return Day(time.Now().UTC().AddDate(0, 0, -1))
}
