package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"overscope/pkg/config"
	"overscope/services/organization"
	"overscope/services/task"
	"overscope/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db   *gorm.DB
	agg  *Aggregator
	node *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&organization.Organization{}, &organization.Project{},
		&task.Task{}, &task.TaskEvent{},
		&DailyMetric{},
	)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	orgs := organization.NewService(organization.ServiceParams{DB: db, Node: node})

	cfg := &config.Config{}
	cfg.Aggregation.Concurrency = 2

	agg := NewAggregator(AggregatorParams{DB: db, Orgs: orgs, Config: cfg})
	return &fixture{db: db, agg: agg, node: node}
}

func (f *fixture) seedOrg(t *testing.T, name string) (*organization.Organization, *organization.Project) {
	t.Helper()

	org := &organization.Organization{ID: f.node.Generate().String(), Name: name, Slug: name}
	require.NoError(t, f.db.Create(org).Error)

	project := &organization.Project{
		ID:             f.node.Generate().String(),
		OrganizationID: org.ID,
		Name:           name + "-core",
	}
	require.NoError(t, f.db.Create(project).Error)
	return org, project
}

func (f *fixture) seedTask(t *testing.T, projectID string, status task.Status, createdAt time.Time) *task.Task {
	t.Helper()

	row := &task.Task{
		ID:        f.node.Generate().String(),
		ProjectID: projectID,
		Title:     "seeded",
		Status:    status,
		Priority:  3,
	}
	require.NoError(t, f.db.Create(row).Error)
	require.NoError(t, f.db.Model(&task.Task{}).Where("id = ?", row.ID).
		Update("created_at", createdAt).Error)
	row.CreatedAt = createdAt
	return row
}

func (f *fixture) seedEvent(t *testing.T, taskID string, eventType task.EventType, createdAt time.Time) {
	t.Helper()

	ev := &task.TaskEvent{
		ID:        f.node.Generate().String(),
		TaskID:    taskID,
		EventType: eventType,
	}
	require.NoError(t, f.db.Create(ev).Error)
	require.NoError(t, f.db.Model(&task.TaskEvent{}).Where("id = ?", ev.ID).
		Update("created_at", createdAt).Error)
}

func TestAggregateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, project := f.seedOrg(t, "acme")
	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	// created on the day, completed the same day 10h later
	done := f.seedTask(t, project.ID, task.StatusCompleted, day.Add(8*time.Hour))
	f.seedEvent(t, done.ID, task.EventCreated, day.Add(8*time.Hour))
	f.seedEvent(t, done.ID, task.EventCompleted, day.Add(18*time.Hour))

	// created on the day, still open at its end
	f.seedTask(t, project.ID, task.StatusOpen, day.Add(9*time.Hour))

	// created the day after; invisible to this aggregation
	f.seedTask(t, project.ID, task.StatusOpen, day.Add(30*time.Hour))

	metric, err := f.agg.AggregateOrganization(ctx, org.ID, day)
	require.NoError(t, err)
	require.Equal(t, 2, metric.TasksCreated)
	require.Equal(t, 1, metric.TasksCompleted)
	require.Equal(t, 1, metric.OpenTasksEndOfDay)
	require.NotNil(t, metric.AvgLeadTimeHours)
	require.InDelta(t, 10.0, *metric.AvgLeadTimeHours, 0.01)
}

func TestAggregateUsesEarliestCompletionOfDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, project := f.seedOrg(t, "acme")
	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	// completed twice in one day after a reopen; lead time counts from the
	// first completion
	row := f.seedTask(t, project.ID, task.StatusCompleted, day.Add(2*time.Hour))
	f.seedEvent(t, row.ID, task.EventCompleted, day.Add(6*time.Hour))
	f.seedEvent(t, row.ID, task.EventReassigned, day.Add(8*time.Hour))
	f.seedEvent(t, row.ID, task.EventCompleted, day.Add(20*time.Hour))

	metric, err := f.agg.AggregateOrganization(ctx, org.ID, day)
	require.NoError(t, err)
	require.Equal(t, 1, metric.TasksCompleted)
	require.InDelta(t, 4.0, *metric.AvgLeadTimeHours, 0.01)
}

func TestAggregateIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, project := f.seedOrg(t, "acme")
	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	row := f.seedTask(t, project.ID, task.StatusCompleted, day.Add(time.Hour))
	f.seedEvent(t, row.ID, task.EventCompleted, day.Add(5*time.Hour))

	first, err := f.agg.AggregateOrganization(ctx, org.ID, day)
	require.NoError(t, err)
	second, err := f.agg.AggregateOrganization(ctx, org.ID, day)
	require.NoError(t, err)

	require.Equal(t, first.TasksCreated, second.TasksCreated)
	require.Equal(t, first.TasksCompleted, second.TasksCompleted)
	require.Equal(t, first.OpenTasksEndOfDay, second.OpenTasksEndOfDay)
	require.InDelta(t, *first.AvgLeadTimeHours, *second.AvgLeadTimeHours, 0.0001)

	var count int64
	require.NoError(t, f.db.Model(&DailyMetric{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAggregateEmptyOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, _ := f.seedOrg(t, "quiet")
	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	metric, err := f.agg.AggregateOrganization(ctx, org.ID, day)
	require.NoError(t, err)
	require.Zero(t, metric.TasksCreated)
	require.Zero(t, metric.TasksCompleted)
	require.Zero(t, metric.OpenTasksEndOfDay)
	require.Nil(t, metric.AvgLeadTimeHours)
}

func TestAggregateScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	orgA, projectA := f.seedOrg(t, "alpha")
	_, projectB := f.seedOrg(t, "beta")

	f.seedTask(t, projectA.ID, task.StatusOpen, day.Add(time.Hour))
	f.seedTask(t, projectB.ID, task.StatusOpen, day.Add(time.Hour))
	f.seedTask(t, projectB.ID, task.StatusOpen, day.Add(2*time.Hour))

	metric, err := f.agg.AggregateOrganization(ctx, orgA.ID, day)
	require.NoError(t, err)
	require.Equal(t, 1, metric.TasksCreated)
	require.Equal(t, 1, metric.OpenTasksEndOfDay)
}

func TestRunCoversEveryOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	orgA, projectA := f.seedOrg(t, "alpha")
	orgB, _ := f.seedOrg(t, "beta")
	f.seedTask(t, projectA.ID, task.StatusOpen, day.Add(time.Hour))

	require.NoError(t, f.agg.Run(ctx, day))

	for _, orgID := range []string{orgA.ID, orgB.ID} {
		metric, err := f.agg.DailyMetricFor(ctx, orgID, day)
		require.NoError(t, err)
		require.NotNil(t, metric)
	}
}

func TestRunIsolatesFailingOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	broken, _ := f.seedOrg(t, "broken")
	healthy, project := f.seedOrg(t, "healthy")
	f.seedTask(t, project.ID, task.StatusOpen, day.Add(time.Hour))

	step := f.agg.aggregate
	f.agg.aggregate = func(ctx context.Context, orgID string, date time.Time) (*DailyMetric, error) {
		if orgID == broken.ID {
			return nil, errors.New("aggregation blew up")
		}
		return step(ctx, orgID, date)
	}

	// one organization failing must not abort the run or starve the rest
	require.NoError(t, f.agg.Run(ctx, day))

	metric, err := f.agg.DailyMetricFor(ctx, healthy.ID, day)
	require.NoError(t, err)
	require.NotNil(t, metric)
	require.Equal(t, 1, metric.TasksCreated)

	missing, err := f.agg.DailyMetricFor(ctx, broken.ID, day)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)

	f.seedOrg(t, "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.agg.Run(ctx, Yesterday())
	require.Error(t, err)
}

func TestDailyMetricForMissing(t *testing.T) {
	f := newFixture(t)

	org, _ := f.seedOrg(t, "acme")
	metric, err := f.agg.DailyMetricFor(context.Background(), org.ID, Yesterday())
	require.NoError(t, err)
	require.Nil(t, metric)
}

func TestEnqueueAllFallsBackToInline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, project := f.seedOrg(t, "acme")
	day := Day(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	f.seedTask(t, project.ID, task.StatusOpen, day.Add(time.Hour))

	// no asynq client wired, so the fan-out runs inline
	require.NoError(t, f.agg.EnqueueAll(ctx, day))

	metric, err := f.agg.DailyMetricFor(ctx, org.ID, day)
	require.NoError(t, err)
	require.NotNil(t, metric)
	require.Equal(t, 1, metric.TasksCreated)
}
