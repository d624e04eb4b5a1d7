package metrics

import (
	"context"
	"math"
	"time"

	"overscope/services/task"
)

// RollingStatsFor computes the trailing 30-day snapshot for an organization
// at call time. Nothing is persisted; callers get a fresh read every time.
func (a *Aggregator) RollingStatsFor(ctx context.Context, orgID string) (*RollingStats, error) {
	if _, err := a.orgs.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	windowStart := now.AddDate(0, 0, -30)

	var created int64
	err := a.db.WithContext(ctx).Model(&task.Task{}).
		Joins("INNER JOIN projects ON projects.id = tasks.project_id").
		Where("projects.organization_id = ?", orgID).
		Where("tasks.created_at >= ?", windowStart).
		Count(&created).Error
	if err != nil {
		return nil, err
	}

	// completion is judged by the event log, not by current status: a task
	// created in the window counts once it has any completed event
	var events []task.TaskEvent
	err = a.db.WithContext(ctx).Model(&task.TaskEvent{}).
		Joins("INNER JOIN tasks ON tasks.id = task_events.task_id").
		Joins("INNER JOIN projects ON projects.id = tasks.project_id").
		Where("projects.organization_id = ?", orgID).
		Where("task_events.event_type = ?", task.EventCompleted).
		Where("tasks.created_at >= ?", windowStart).
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	earliest := make(map[string]time.Time, len(events))
	for _, ev := range events {
		if at, ok := earliest[ev.TaskID]; !ok || ev.CreatedAt.Before(at) {
			earliest[ev.TaskID] = ev.CreatedAt
		}
	}

	avgLead := 0.0
	if len(earliest) > 0 {
		ids := make([]string, 0, len(earliest))
		for id := range earliest {
			ids = append(ids, id)
		}
		var tasks []task.Task
		if err := a.db.WithContext(ctx).Where("id IN ?", ids).Find(&tasks).Error; err != nil {
			return nil, err
		}
		var sum float64
		for _, t := range tasks {
			sum += earliest[t.ID].Sub(t.CreatedAt).Hours()
		}
		avgLead = sum / float64(len(tasks))
	}

	completionRatio := 0.0
	if created > 0 {
		completionRatio = math.Round(float64(len(earliest))/float64(created)*100*100) / 100
	}

	var open int64
	err = a.db.WithContext(ctx).Model(&task.Task{}).
		Joins("INNER JOIN projects ON projects.id = tasks.project_id").
		Where("projects.organization_id = ?", orgID).
		Where("tasks.status IN ?", []task.Status{task.StatusOpen, task.StatusInProgress}).
		Count(&open).Error
	if err != nil {
		return nil, err
	}

	return &RollingStats{
		OrganizationID:    orgID,
		TasksCreated30d:   int(created),
		TasksCompleted30d: len(earliest),
		AvgLeadTimeHours:  avgLead,
		CompletionRatio:   completionRatio,
		OpenTasksNow:      int(open),
	}, nil
}
