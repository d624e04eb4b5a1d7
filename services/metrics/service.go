package metrics

import (
	"context"
	"time"

	"overscope/pkg/config"
	"overscope/services/organization"
	"overscope/services/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Aggregator turns the raw task event log into per-organization daily
// metrics. Organizations are independent units of work: one organization
// failing never aborts the others.
type Aggregator struct {
	db          *gorm.DB
	orgs        *organization.Service
	asynq       *asynq.Client
	concurrency int

	// aggregate is the per-organization step Run fans out over;
	// AggregateOrganization unless a test swaps it
	aggregate func(ctx context.Context, orgID string, date time.Time) (*DailyMetric, error)
}

type AggregatorParams struct {
	fx.In
	DB     *gorm.DB
	Orgs   *organization.Service
	Config *config.Config
	Asynq  *asynq.Client `optional:"true"`
}

func NewAggregator(p AggregatorParams) *Aggregator {
	concurrency := 1
	if p.Config != nil && p.Config.Aggregation.Concurrency > 0 {
		concurrency = p.Config.Aggregation.Concurrency
	}
	a := &Aggregator{
		db:          p.DB,
		orgs:        p.Orgs,
		asynq:       p.Asynq,
		concurrency: concurrency,
	}
	a.aggregate = a.AggregateOrganization
	return a
}

// AggregateOrganization computes and upserts the DailyMetric for one
// (organization, date) pair. The upsert is a single statement, so the row is
// never observable half-written and the call is safe to re-run or cancel
// between organizations.
func (a *Aggregator) AggregateOrganization(ctx context.Context, orgID string, date time.Time) (*DailyMetric, error) {
	start := Day(date)
	end := start.Add(24 * time.Hour)

	var created int64
	err := a.db.WithContext(ctx).Model(&task.Task{}).
		Joins("INNER JOIN projects ON projects.id = tasks.project_id").
		Where("projects.organization_id = ?", orgID).
		Where("tasks.created_at >= ? AND tasks.created_at < ?", start, end).
		Count(&created).Error
	if err != nil {
		return nil, err
	}

	completedCount, avgLead, err := a.completedOnDay(ctx, orgID, start, end)
	if err != nil {
		return nil, err
	}

	var open int64
	err = a.db.WithContext(ctx).Model(&task.Task{}).
		Joins("INNER JOIN projects ON projects.id = tasks.project_id").
		Where("projects.organization_id = ?", orgID).
		Where("tasks.created_at < ?", end).
		Where("tasks.status IN ?", []task.Status{task.StatusOpen, task.StatusInProgress}).
		Count(&open).Error
	if err != nil {
		return nil, err
	}

	metric := &DailyMetric{
		OrganizationID:    orgID,
		Date:              start,
		TasksCreated:      int(created),
		TasksCompleted:    completedCount,
		AvgLeadTimeHours:  avgLead,
		OpenTasksEndOfDay: int(open),
	}

	err = a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "organization_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tasks_created", "tasks_completed", "avg_lead_time_hours", "open_tasks_end_of_day",
		}),
	}).Create(metric).Error
	if err != nil {
		return nil, err
	}

	return metric, nil
}

// completedOnDay counts tasks whose status is completed, that were created
// before the day's end, and that have a completed event inside the day. The
// lead time per task uses its earliest completed event of that day.
func (a *Aggregator) completedOnDay(ctx context.Context, orgID string, start, end time.Time) (int, *float64, error) {
	var events []task.TaskEvent
	err := a.db.WithContext(ctx).Model(&task.TaskEvent{}).
		Joins("INNER JOIN tasks ON tasks.id = task_events.task_id").
		Joins("INNER JOIN projects ON projects.id = tasks.project_id").
		Where("projects.organization_id = ?", orgID).
		Where("task_events.event_type = ?", task.EventCompleted).
		Where("task_events.created_at >= ? AND task_events.created_at < ?", start, end).
		Where("tasks.status = ?", task.StatusCompleted).
		Where("tasks.created_at < ?", end).
		Find(&events).Error
	if err != nil {
		return 0, nil, err
	}
	if len(events) == 0 {
		return 0, nil, nil
	}

	earliest := make(map[string]time.Time, len(events))
	for _, ev := range events {
		if at, ok := earliest[ev.TaskID]; !ok || ev.CreatedAt.Before(at) {
			earliest[ev.TaskID] = ev.CreatedAt
		}
	}

	ids := make([]string, 0, len(earliest))
	for id := range earliest {
		ids = append(ids, id)
	}

	var tasks []task.Task
	if err := a.db.WithContext(ctx).Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return 0, nil, err
	}

	var sum float64
	for _, t := range tasks {
		sum += earliest[t.ID].Sub(t.CreatedAt).Hours()
	}
	avg := sum / float64(len(tasks))

	return len(earliest), &avg, nil
}

// Run aggregates every organization for the given date. Per-organization
// failures are logged and skipped; cancellation stops scheduling further
// organizations but lets in-flight upserts finish.
func (a *Aggregator) Run(ctx context.Context, date time.Time) error {
	orgs, err := a.orgs.ListOrganizations(ctx)
	if err != nil {
		return err
	}

	g := errgroup.Group{}
	g.SetLimit(a.concurrency)

	for _, org := range orgs {
		if err := ctx.Err(); err != nil {
			break
		}
		orgID := org.ID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return nil
			}
			if _, err := a.aggregate(ctx, orgID, date); err != nil {
				zap.L().Error("failed to aggregate organization metrics",
					zap.String("organization_id", orgID),
					zap.Time("date", Day(date)),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

// DailyMetricFor reads an already aggregated row.
func (a *Aggregator) DailyMetricFor(ctx context.Context, orgID string, date time.Time) (*DailyMetric, error) {
	var metric DailyMetric
	err := a.db.WithContext(ctx).
		Where("organization_id = ? AND date = ?", orgID, Day(date)).
		First(&metric).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &metric, nil
}
