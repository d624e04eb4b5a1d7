package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"overscope/pkg/errutil"
	"overscope/services/estimation"
	"overscope/services/organization"
	"overscope/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type accuracyCall struct {
	taskID         string
	estimatedHours int
	actualHours    float64
	userID         string
}

// stubGateway satisfies estimation.Gateway without any network.
type stubGateway struct {
	estimateResult estimation.EstimateResult
	estimateCalls  int
	trackStatus    string
	tracked        []accuracyCall
}

func (g *stubGateway) Estimate(_ context.Context, _ estimation.TaskSnapshot, _ string) estimation.EstimateResult {
	g.estimateCalls++
	if g.estimateResult.EstimateHours == 0 {
		return estimation.EstimateResult{EstimateHours: 8, Method: "fallback"}
	}
	return g.estimateResult
}

func (g *stubGateway) TrackAccuracy(_ context.Context, taskID string, estimatedHours int, actualHours float64, userID string) estimation.AccuracyResult {
	g.tracked = append(g.tracked, accuracyCall{taskID, estimatedHours, actualHours, userID})
	status := g.trackStatus
	if status == "" {
		status = "recorded"
	}
	return estimation.AccuracyResult{Status: status}
}

func (g *stubGateway) Stats(_ context.Context, _, _ string) estimation.StatsResult {
	return estimation.StatsResult{}
}

func (g *stubGateway) ScoreTasks(_ context.Context, _ []estimation.TaskScore) []estimation.ScoredTask {
	return []estimation.ScoredTask{}
}

func (g *stubGateway) OptimizeSchedule(_ context.Context, _ []estimation.UserCapacity, _ []estimation.ScheduleTask) estimation.ScheduleResult {
	return estimation.ScheduleResult{}
}

func (g *stubGateway) Simulate(_ context.Context, _ []estimation.UserCapacity, _ []estimation.ScheduleTask, _ estimation.SimulationConfig) estimation.SimulationResult {
	return estimation.SimulationResult{}
}

func newTestService(t *testing.T, gw estimation.Gateway) (*Service, *gorm.DB, *organization.Project) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&organization.Organization{}, &organization.Project{},
		&Task{}, &TaskEvent{}, &EstimationAccuracy{},
	)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	org := &organization.Organization{ID: node.Generate().String(), Name: "Acme", Slug: "acme"}
	require.NoError(t, db.Create(org).Error)

	project := &organization.Project{
		ID:             node.Generate().String(),
		OrganizationID: org.ID,
		Name:           "Core",
		Slug:           "core",
	}
	require.NoError(t, db.Create(project).Error)

	svc := NewService(ServiceParams{DB: db, Node: node, Gateway: gw})
	return svc, db, project
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func backdate(t *testing.T, db *gorm.DB, taskID string, d time.Duration) {
	t.Helper()
	err := db.Model(&Task{}).Where("id = ?", taskID).
		Update("created_at", time.Now().UTC().Add(-d)).Error
	require.NoError(t, err)
}

func TestCreateTaskValidation(t *testing.T) {
	svc, _, project := newTestService(t, &stubGateway{})

	_, err := svc.Create(context.Background(), CreateTaskInput{
		ProjectID: project.ID,
		Title:     "",
		Priority:  0,
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Len(t, be.Details, 2)
}

func TestCreateTaskProjectNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, &stubGateway{})

	_, err := svc.Create(context.Background(), CreateTaskInput{
		ProjectID: "missing",
		Title:     "orphan",
		Priority:  3,
	})
	require.True(t, errutil.IsNotFound(err))
}

func TestCreateTaskAutoEstimate(t *testing.T) {
	gw := &stubGateway{estimateResult: estimation.EstimateResult{EstimateHours: 12, Method: "ml"}}
	svc, _, project := newTestService(t, gw)

	task, err := svc.Create(context.Background(), CreateTaskInput{
		ProjectID: project.ID,
		Title:     "build widgets",
		Priority:  3,
	})
	require.NoError(t, err)
	require.Equal(t, 1, gw.estimateCalls)
	require.NotNil(t, task.EstimateHours)
	require.Equal(t, 12, *task.EstimateHours)
	require.NotNil(t, task.Complexity)
	require.Equal(t, 3, *task.Complexity)
	require.Equal(t, StatusOpen, task.Status)

	events, err := svc.Events(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventCreated, events[0].EventType)
}

func TestCreateTaskManualEstimateSkipsEngine(t *testing.T) {
	gw := &stubGateway{}
	svc, _, project := newTestService(t, gw)

	task, err := svc.Create(context.Background(), CreateTaskInput{
		ProjectID:     project.ID,
		Title:         "already sized",
		Priority:      2,
		EstimateHours: intPtr(5),
	})
	require.NoError(t, err)
	require.Zero(t, gw.estimateCalls)
	require.Equal(t, 5, *task.EstimateHours)
}

func TestTransitionEventClassification(t *testing.T) {
	svc, _, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "lifecycle", Priority: 3, EstimateHours: intPtr(4),
	})
	require.NoError(t, err)

	steps := []struct {
		to   Status
		want EventType
	}{
		{StatusInProgress, EventReassigned},
		{StatusCompleted, EventCompleted},
		{StatusOpen, EventReassigned},
		{StatusCompleted, EventCompleted},
	}

	for _, step := range steps {
		updated, err := svc.Transition(ctx, task.ID, step.to, nil)
		require.NoError(t, err)
		require.Equal(t, step.to, updated.Status)
	}

	events, err := svc.Events(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 5)

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	require.ElementsMatch(t, []EventType{
		EventCreated, EventReassigned, EventCompleted, EventReassigned, EventCompleted,
	}, types)
	require.Equal(t, EventCreated, events[0].EventType)
}

func TestConcurrentCompletionsRecordOneEvent(t *testing.T) {
	svc, _, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "raced", Priority: 3, EstimateHours: intPtr(4),
	})
	require.NoError(t, err)

	// both transitions target completed; whichever commits second must see
	// the new status and no-op instead of appending a duplicate event
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, task.ID, StatusCompleted, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)

	events, err := svc.Events(ctx, task.ID)
	require.NoError(t, err)

	completed := 0
	for _, ev := range events {
		if ev.EventType == EventCompleted {
			completed++
		}
	}
	require.Equal(t, 1, completed)
	require.Len(t, events, 2)
}

func TestTransitionNoOp(t *testing.T) {
	svc, _, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "idle", Priority: 1, EstimateHours: intPtr(1),
	})
	require.NoError(t, err)

	updated, err := svc.Transition(ctx, task.ID, StatusOpen, nil)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, updated.Status)

	events, err := svc.Events(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestTransitionInvalidStatus(t *testing.T) {
	svc, _, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "strict", Priority: 1, EstimateHours: intPtr(1),
	})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, task.ID, Status("archived"), nil)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestTransitionNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, &stubGateway{})

	_, err := svc.Transition(context.Background(), "missing", StatusCompleted, nil)
	require.True(t, errutil.IsNotFound(err))
}

func TestLeadTimeFromEarliestCompletion(t *testing.T) {
	svc, db, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "measured", Priority: 3, EstimateHours: intPtr(8),
	})
	require.NoError(t, err)

	lead, err := svc.LeadTimeHours(ctx, task.ID)
	require.NoError(t, err)
	require.Nil(t, lead)

	backdate(t, db, task.ID, 10*time.Hour)

	_, err = svc.Transition(ctx, task.ID, StatusCompleted, nil)
	require.NoError(t, err)

	lead, err = svc.LeadTimeHours(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	require.InDelta(t, 10.0, *lead, 0.1)

	// reopening and completing again must not move the measurement: the
	// earliest completed event stays authoritative
	_, err = svc.Transition(ctx, task.ID, StatusOpen, nil)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = svc.Transition(ctx, task.ID, StatusCompleted, nil)
	require.NoError(t, err)

	again, err := svc.LeadTimeHours(ctx, task.ID)
	require.NoError(t, err)
	require.InDelta(t, *lead, *again, 0.05)
}

func TestAccuracyRecordedOnCompletion(t *testing.T) {
	gw := &stubGateway{}
	svc, db, project := newTestService(t, gw)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "estimated", Priority: 3, EstimateHours: intPtr(5),
	})
	require.NoError(t, err)
	backdate(t, db, task.ID, 10*time.Hour)

	_, err = svc.Transition(ctx, task.ID, StatusCompleted, strPtr("user-7"))
	require.NoError(t, err)

	require.Len(t, gw.tracked, 1)
	require.Equal(t, task.ID, gw.tracked[0].taskID)
	require.Equal(t, 5, gw.tracked[0].estimatedHours)
	require.InDelta(t, 10.0, gw.tracked[0].actualHours, 0.1)
	require.Equal(t, "user-7", gw.tracked[0].userID)

	var records []EstimationAccuracy
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	require.Equal(t, 5, records[0].EstimatedHours)
	require.InDelta(t, 2.0, records[0].AccuracyRatio, 0.05)
	require.NotNil(t, records[0].ActorID)
	require.Equal(t, "user-7", *records[0].ActorID)
}

func TestAccuracyFailureDoesNotBlockTransition(t *testing.T) {
	gw := &stubGateway{trackStatus: "error"}
	svc, db, project := newTestService(t, gw)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "flaky engine", Priority: 3, EstimateHours: intPtr(5),
	})
	require.NoError(t, err)
	backdate(t, db, task.ID, 2*time.Hour)

	updated, err := svc.Transition(ctx, task.ID, StatusCompleted, nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, updated.Status)
}

func TestAccuracySkippedWithoutEstimate(t *testing.T) {
	gw := &stubGateway{}
	svc, db, project := newTestService(t, gw)
	ctx := context.Background()

	task := &Task{
		ID:        "t-no-estimate",
		ProjectID: project.ID,
		Title:     "unsized",
		Status:    StatusOpen,
		Priority:  3,
	}
	require.NoError(t, db.Create(task).Error)
	backdate(t, db, task.ID, 2*time.Hour)

	_, err := svc.Transition(ctx, task.ID, StatusCompleted, nil)
	require.NoError(t, err)
	require.Empty(t, gw.tracked)
}

func TestUpdateDoesNotTouchStatus(t *testing.T) {
	svc, _, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "renameable", Priority: 2, EstimateHours: intPtr(3),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, task.ID, UpdateTaskInput{
		Title:    strPtr("renamed"),
		Priority: intPtr(5),
	})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Title)
	require.Equal(t, 5, updated.Priority)
	require.Equal(t, StatusOpen, updated.Status)

	events, err := svc.Events(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestDeleteTaskRemovesEvents(t *testing.T) {
	svc, db, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		ProjectID: project.ID, Title: "ephemeral", Priority: 1, EstimateHours: intPtr(1),
	})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, task.ID, StatusInProgress, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, task.ID))

	var count int64
	require.NoError(t, db.Model(&TaskEvent{}).Where("task_id = ?", task.ID).Count(&count).Error)
	require.Zero(t, count)

	_, err = svc.Get(ctx, task.ID)
	require.True(t, errutil.IsNotFound(err))
}

func TestDeleteProjectCascades(t *testing.T) {
	svc, db, project := newTestService(t, &stubGateway{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, CreateTaskInput{
			ProjectID: project.ID, Title: "doomed", Priority: 1, EstimateHours: intPtr(1),
		})
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteProject(ctx, project.OrganizationID, project.ID))

	var tasks, events, projects int64
	require.NoError(t, db.Model(&Task{}).Count(&tasks).Error)
	require.NoError(t, db.Model(&TaskEvent{}).Count(&events).Error)
	require.NoError(t, db.Model(&organization.Project{}).Count(&projects).Error)
	require.Zero(t, tasks)
	require.Zero(t, events)
	require.Zero(t, projects)
}

func TestDeleteProjectWrongOrganization(t *testing.T) {
	svc, _, project := newTestService(t, &stubGateway{})

	err := svc.DeleteProject(context.Background(), "other-org", project.ID)
	require.True(t, errutil.IsNotFound(err))
}
