package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func dueIn(d time.Duration) *time.Time {
	t := time.Now().UTC().Add(d)
	return &t
}

func TestRankByUrgencyPriorityFirst(t *testing.T) {
	tasks := []*Task{
		{ID: "low", Status: StatusOpen, Priority: 1},
		{ID: "high", Status: StatusOpen, Priority: 5},
		{ID: "mid", Status: StatusInProgress, Priority: 3},
	}

	ranked := RankByUrgency(tasks)
	require.Len(t, ranked, 3)
	require.Equal(t, "high", ranked[0].ID)
	require.Equal(t, "mid", ranked[1].ID)
	require.Equal(t, "low", ranked[2].ID)
	require.Equal(t, []int{1, 2, 3}, []int{ranked[0].UrgencyRank, ranked[1].UrgencyRank, ranked[2].UrgencyRank})
}

func TestRankByUrgencyDueDateBreaksPriorityTie(t *testing.T) {
	soon := dueIn(24 * time.Hour)
	later := dueIn(72 * time.Hour)

	tasks := []*Task{
		{ID: "undated", Status: StatusOpen, Priority: 3},
		{ID: "later", Status: StatusOpen, Priority: 3, DueDate: later},
		{ID: "soon", Status: StatusOpen, Priority: 3, DueDate: soon},
	}

	ranked := RankByUrgency(tasks)
	require.Equal(t, "soon", ranked[0].ID)
	require.Equal(t, "later", ranked[1].ID)
	// a task without a due date sorts after any dated task of the same priority
	require.Equal(t, "undated", ranked[2].ID)
}

func TestRankByUrgencyTiesShareRank(t *testing.T) {
	due := dueIn(24 * time.Hour)
	earlier := time.Now().UTC().Add(-2 * time.Hour)
	later := time.Now().UTC().Add(-1 * time.Hour)

	tasks := []*Task{
		{ID: "b", Status: StatusOpen, Priority: 4, DueDate: due, CreatedAt: later},
		{ID: "a", Status: StatusOpen, Priority: 4, DueDate: due, CreatedAt: earlier},
		{ID: "c", Status: StatusOpen, Priority: 2},
	}

	ranked := RankByUrgency(tasks)
	require.Len(t, ranked, 3)
	// tied tasks order by creation time but share the rank
	require.Equal(t, "a", ranked[0].ID)
	require.Equal(t, "b", ranked[1].ID)
	require.Equal(t, 1, ranked[0].UrgencyRank)
	require.Equal(t, 1, ranked[1].UrgencyRank)
	require.Equal(t, 3, ranked[2].UrgencyRank)
}

func TestRankByUrgencyExcludesCompleted(t *testing.T) {
	tasks := []*Task{
		{ID: "done", Status: StatusCompleted, Priority: 5},
		{ID: "open", Status: StatusOpen, Priority: 1},
	}

	ranked := RankByUrgency(tasks)
	require.Len(t, ranked, 1)
	require.Equal(t, "open", ranked[0].ID)
	require.Equal(t, 1, ranked[0].UrgencyRank)
}

func TestRankByUrgencyDeterministicForIdenticalInput(t *testing.T) {
	now := time.Now().UTC()
	tasks := []*Task{
		{ID: "2", Status: StatusOpen, Priority: 3, CreatedAt: now},
		{ID: "1", Status: StatusOpen, Priority: 3, CreatedAt: now},
	}

	first := RankByUrgency(tasks)
	second := RankByUrgency([]*Task{tasks[1], tasks[0]})
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, "1", first[0].ID)
}

func TestListByUrgency(t *testing.T) {
	svc, db, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	seed := []*Task{
		{ID: "t1", ProjectID: project.ID, Title: "urgent", Status: StatusOpen, Priority: 5},
		{ID: "t2", ProjectID: project.ID, Title: "done", Status: StatusCompleted, Priority: 5},
		{ID: "t3", ProjectID: project.ID, Title: "routine", Status: StatusInProgress, Priority: 2},
	}
	for _, task := range seed {
		require.NoError(t, db.Create(task).Error)
	}

	ranked, err := svc.ListByUrgency(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, "t1", ranked[0].ID)
	require.Equal(t, "t3", ranked[1].ID)
}
