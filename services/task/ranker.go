package task

import (
	"context"
	"sort"
)

// RankedTask pairs a task with its urgency rank (1 = most urgent) within its
// project.
type RankedTask struct {
	*Task
	UrgencyRank int `json:"urgencyRank"`
}

// RankByUrgency orders active tasks by priority descending, then due date
// ascending with undated tasks last. Tasks tied on both share a rank, like
// SQL RANK(); creation time and finally the snowflake ID break the remaining
// order so output is deterministic for identical input. Pure function: no
// reads, no writes.
func RankByUrgency(tasks []*Task) []RankedTask {
	active := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status.Active() {
			active = append(active, t)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return urgencyLess(active[i], active[j])
	})

	ranked := make([]RankedTask, len(active))
	for i, t := range active {
		rank := i + 1
		if i > 0 && sameUrgencyKey(active[i-1], t) {
			rank = ranked[i-1].UrgencyRank
		}
		ranked[i] = RankedTask{Task: t, UrgencyRank: rank}
	}
	return ranked
}

func urgencyLess(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	switch {
	case a.DueDate == nil && b.DueDate != nil:
		return false
	case a.DueDate != nil && b.DueDate == nil:
		return true
	case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
		return a.DueDate.Before(*b.DueDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// sameUrgencyKey covers only the ranking key (priority, due date); the
// tie-break columns order output without splitting ranks.
func sameUrgencyKey(a, b *Task) bool {
	if a.Priority != b.Priority {
		return false
	}
	if (a.DueDate == nil) != (b.DueDate == nil) {
		return false
	}
	if a.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
		return false
	}
	return true
}

// ListByUrgency loads a project's active tasks and ranks them for display
// ordering.
func (s *Service) ListByUrgency(ctx context.Context, projectID string) ([]RankedTask, error) {
	var tasks []*Task
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("status IN ?", []Status{StatusOpen, StatusInProgress}).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return RankByUrgency(tasks), nil
}
