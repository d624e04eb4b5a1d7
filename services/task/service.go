package task

import (
	"context"
	"fmt"
	"time"

	"overscope/pkg/errutil"
	"overscope/pkg/repository"
	"overscope/services/estimation"
	"overscope/services/organization"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns the task lifecycle: creation with auto-estimation, legal
// status transitions, and the append-only event log they produce.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	gateway estimation.Gateway

	tasks    repository.Repository[Task]
	events   repository.Repository[TaskEvent]
	accuracy repository.Repository[EstimationAccuracy]
	projects repository.Repository[organization.Project]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Gateway estimation.Gateway
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		gateway: p.Gateway,

		tasks:    repository.ProvideStore[Task](p.DB),
		events:   repository.ProvideStore[TaskEvent](p.DB),
		accuracy: repository.ProvideStore[EstimationAccuracy](p.DB),
		projects: repository.ProvideStore[organization.Project](p.DB),
	}
}

type CreateTaskInput struct {
	ProjectID     string
	Title         string
	Description   string
	Priority      int
	Complexity    *int
	EstimateHours *int
	DueDate       *time.Time
	ActorID       *string
}

func validateCreate(in CreateTaskInput) []errutil.Detail {
	var details []errutil.Detail
	if in.Title == "" {
		details = append(details, errutil.Detail{Field: "title", Message: "must be present"})
	}
	if in.Priority < 1 || in.Priority > 5 {
		details = append(details, errutil.Detail{Field: "priority", Message: "must be between 1 and 5"})
	}
	if in.Complexity != nil && (*in.Complexity < 1 || *in.Complexity > 5) {
		details = append(details, errutil.Detail{Field: "complexity", Message: "must be between 1 and 5"})
	}
	if in.EstimateHours != nil && *in.EstimateHours <= 0 {
		details = append(details, errutil.Detail{Field: "estimate_hours", Message: "must be greater than 0"})
	}
	return details
}

// Create validates the input, fills a missing estimate from the estimation
// engine (which always answers, falling back locally), and persists the task
// together with its `created` event in one transaction.
func (s *Service) Create(ctx context.Context, in CreateTaskInput) (*Task, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if details := validateCreate(in); len(details) > 0 {
		return nil, errutil.ValidationFailed("invalid task", errutil.WithDetails(details...))
	}

	project, err := s.projects.FindOne(ctx, &organization.Project{ID: in.ProjectID})
	if err != nil {
		return nil, errutil.Internal("failed to query project", errutil.WithErr(err))
	}
	if project == nil {
		return nil, errutil.NotFound("project not found")
	}

	complexity := in.Complexity
	if complexity == nil {
		c := 3
		complexity = &c
	}

	estimate := in.EstimateHours
	estimateMethod := "manual"
	if estimate == nil {
		actor := ""
		if in.ActorID != nil {
			actor = *in.ActorID
		}
		result := s.gateway.Estimate(ctx, estimation.TaskSnapshot{
			Priority:   in.Priority,
			DueDate:    in.DueDate,
			Status:     string(StatusOpen),
			Complexity: *complexity,
		}, actor)
		estimate = &result.EstimateHours
		estimateMethod = result.Method
	}

	task := &Task{
		ID:            s.node.Generate().String(),
		ProjectID:     in.ProjectID,
		Title:         in.Title,
		Description:   in.Description,
		Status:        StatusOpen,
		Priority:      in.Priority,
		Complexity:    complexity,
		EstimateHours: estimate,
		DueDate:       in.DueDate,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return err
		}
		return tx.Create(s.newEvent(task.ID, EventCreated, in.ActorID)).Error
	})
	if err != nil {
		zap.L().Error("failed to create task", zap.Error(err))
		return nil, errutil.Internal("failed to create task", errutil.WithErr(err))
	}

	zap.L().Info("task created",
		zap.String("task_id", task.ID),
		zap.String("project_id", task.ProjectID),
		zap.String("estimate_method", estimateMethod),
	)

	return task, nil
}

// Transition moves a task to newStatus and appends exactly one event in the
// same transaction. Entering completed records a `completed` event; every
// other change, including leaving completed, records `reassigned` (the two
// reassigned cases are deliberately identical). A transition to the current
// status is a no-op and records nothing.
func (s *Service) Transition(ctx context.Context, taskID string, newStatus Status, actorID *string) (*Task, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if !newStatus.Valid() {
		return nil, errutil.ValidationFailed("invalid status",
			errutil.WithDetails(errutil.Detail{Field: "status", Message: fmt.Sprintf("%q is not a valid status", newStatus)}))
	}

	var task Task
	var completedNow bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// concurrent transitions on the same task must not interleave their
		// status reads; sqlite serialises writers on its own
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&task, "id = ?", taskID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errutil.NotFound("task not found")
			}
			return err
		}

		if task.Status == newStatus {
			return nil
		}

		eventType := EventReassigned
		if newStatus == StatusCompleted {
			eventType = EventCompleted
			completedNow = true
		}

		if err := tx.Model(&Task{}).Where("id = ?", taskID).Update("status", newStatus).Error; err != nil {
			return err
		}
		task.Status = newStatus

		return tx.Create(s.newEvent(taskID, eventType, actorID)).Error
	})
	if err != nil {
		if _, ok := err.(errutil.BaseError); ok {
			return nil, err
		}
		zap.L().Error("failed to transition task", zap.String("task_id", taskID), zap.Error(err))
		return nil, errutil.Internal("failed to transition task", errutil.WithErr(err))
	}

	// Accuracy tracking happens after commit and is strictly best-effort: a
	// failure here never reverts or blocks the transition.
	if completedNow && task.EstimateHours != nil {
		s.trackAccuracy(ctx, &task)
	}

	return &task, nil
}

// trackAccuracy records estimate-vs-actual for a just-completed task, both
// locally and against the engine. Lead time uses the earliest completed
// event; the actor comes from the most recent one. The mismatch is inherited
// behaviour that downstream reporting depends on.
func (s *Service) trackAccuracy(ctx context.Context, task *Task) {
	lead, err := s.LeadTimeHours(ctx, task.ID)
	if err != nil || lead == nil || *lead <= 0 {
		if err != nil {
			zap.L().Warn("failed to compute lead time for accuracy tracking",
				zap.String("task_id", task.ID), zap.Error(err))
		}
		return
	}

	latest, err := s.events.FindOne(ctx,
		&TaskEvent{TaskID: task.ID, EventType: EventCompleted},
		latestFirst())
	if err != nil {
		zap.L().Warn("failed to resolve completion actor",
			zap.String("task_id", task.ID), zap.Error(err))
		return
	}

	var actorID *string
	actor := ""
	if latest != nil && latest.ActorID != nil {
		actorID = latest.ActorID
		actor = *latest.ActorID
	}

	record := &EstimationAccuracy{
		ID:             s.node.Generate().String(),
		TaskID:         task.ID,
		EstimatedHours: *task.EstimateHours,
		ActualHours:    *lead,
		AccuracyRatio:  *lead / float64(*task.EstimateHours),
		ActorID:        actorID,
	}
	if err := s.accuracy.Create(ctx, record); err != nil {
		zap.L().Warn("failed to persist estimation accuracy",
			zap.String("task_id", task.ID), zap.Error(err))
	}

	result := s.gateway.TrackAccuracy(ctx, task.ID, *task.EstimateHours, *lead, actor)
	if result.Status == "error" {
		zap.L().Warn("engine rejected accuracy record", zap.String("task_id", task.ID))
	}
}

// LeadTimeHours is the gap between task creation and the earliest completed
// event, in hours. It is nil while no completed event exists.
func (s *Service) LeadTimeHours(ctx context.Context, taskID string) (*float64, error) {
	task, err := s.tasks.FindOne(ctx, &Task{ID: taskID})
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errutil.NotFound("task not found")
	}

	earliest, err := s.events.FindOne(ctx,
		&TaskEvent{TaskID: taskID, EventType: EventCompleted},
		earliestFirst())
	if err != nil {
		return nil, err
	}
	if earliest == nil {
		return nil, nil
	}

	hours := earliest.CreatedAt.Sub(task.CreatedAt).Hours()
	return &hours, nil
}

func (s *Service) Get(ctx context.Context, taskID string) (*Task, error) {
	task, err := s.tasks.FindOne(ctx, &Task{ID: taskID})
	if err != nil {
		return nil, errutil.Internal("failed to query task", errutil.WithErr(err))
	}
	if task == nil {
		return nil, errutil.NotFound("task not found")
	}
	return task, nil
}

func (s *Service) ListByProject(ctx context.Context, projectID string) ([]*Task, error) {
	return s.tasks.Find(ctx, &Task{ProjectID: projectID}, latestFirst())
}

// Events returns a task's log in insertion order.
func (s *Service) Events(ctx context.Context, taskID string) ([]*TaskEvent, error) {
	return s.events.Find(ctx, &TaskEvent{TaskID: taskID}, earliestFirst())
}

type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Priority      *int
	Complexity    *int
	EstimateHours *int
	DueDate       *time.Time
}

// Update changes task attributes. Status is not an attribute here; use
// Transition so the event log stays consistent.
func (s *Service) Update(ctx context.Context, taskID string, in UpdateTaskInput) (*Task, error) {
	var details []errutil.Detail
	if in.Title != nil && *in.Title == "" {
		details = append(details, errutil.Detail{Field: "title", Message: "must be present"})
	}
	if in.Priority != nil && (*in.Priority < 1 || *in.Priority > 5) {
		details = append(details, errutil.Detail{Field: "priority", Message: "must be between 1 and 5"})
	}
	if in.Complexity != nil && (*in.Complexity < 1 || *in.Complexity > 5) {
		details = append(details, errutil.Detail{Field: "complexity", Message: "must be between 1 and 5"})
	}
	if in.EstimateHours != nil && *in.EstimateHours <= 0 {
		details = append(details, errutil.Detail{Field: "estimate_hours", Message: "must be greater than 0"})
	}
	if len(details) > 0 {
		return nil, errutil.ValidationFailed("invalid task", errutil.WithDetails(details...))
	}

	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.Complexity != nil {
		updates["complexity"] = *in.Complexity
	}
	if in.EstimateHours != nil {
		updates["estimate_hours"] = *in.EstimateHours
	}
	if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}

	if len(updates) > 0 {
		if err := s.tasks.Update(ctx, taskID, updates); err != nil {
			return nil, errutil.Internal("failed to update task", errutil.WithErr(err))
		}
	}

	return s.Get(ctx, taskID)
}

// Delete removes a task and its events together.
func (s *Service) Delete(ctx context.Context, taskID string) error {
	if _, err := s.Get(ctx, taskID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&TaskEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", taskID).Delete(&Task{}).Error
	})
}

// DeleteProject destroys a project with all of its tasks and their events.
func (s *Service) DeleteProject(ctx context.Context, orgID, projectID string) error {
	project, err := s.projects.FindOne(ctx, &organization.Project{ID: projectID, OrganizationID: orgID})
	if err != nil {
		return errutil.Internal("failed to query project", errutil.WithErr(err))
	}
	if project == nil {
		return errutil.NotFound("project not found")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("task_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).Model(&Task{}).Select("id").Where("project_id = ?", projectID)).
			Delete(&TaskEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&Task{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", projectID).Delete(&organization.Project{}).Error
	})
}

func (s *Service) newEvent(taskID string, eventType EventType, actorID *string) *TaskEvent {
	return &TaskEvent{
		ID:        s.node.Generate().String(),
		TaskID:    taskID,
		EventType: eventType,
		ActorID:   actorID,
		Metadata:  datatypes.JSON([]byte(`{}`)),
	}
}
