package task

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Active reports whether the task still counts toward open work.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusInProgress
}

type EventType string

const (
	EventCreated    EventType = "created"
	EventStarted    EventType = "started"
	EventCompleted  EventType = "completed"
	EventReassigned EventType = "reassigned"
)

type Task struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	ProjectID     string     `gorm:"column:project_id;index;not null" json:"projectId"`
	Title         string     `gorm:"column:title;not null" json:"title"`
	Description   string     `gorm:"column:description;type:text" json:"description"`
	Status        Status     `gorm:"column:status;type:varchar(20);default:'open'" json:"status"`
	Priority      int        `gorm:"column:priority;not null" json:"priority"`
	Complexity    *int       `gorm:"column:complexity" json:"complexity,omitempty"`
	EstimateHours *int       `gorm:"column:estimate_hours" json:"estimateHours,omitempty"`
	DueDate       *time.Time `gorm:"column:due_date" json:"dueDate,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

func (Task) TableName() string { return "tasks" }

func (t *Task) Completed() bool { return t.Status == StatusCompleted }

// TaskEvent is one entry of the append-only lifecycle log. Rows are never
// updated or deleted while their task exists; they go away only with the
// task itself.
type TaskEvent struct {
	ID        string         `gorm:"column:id;primaryKey" json:"id"`
	TaskID    string         `gorm:"column:task_id;index:idx_task_events_task_created,priority:1;not null" json:"taskId"`
	EventType EventType      `gorm:"column:event_type;type:varchar(20);not null" json:"eventType"`
	ActorID   *string        `gorm:"column:actor_user_id" json:"actorId,omitempty"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;index:idx_task_events_task_created,priority:2" json:"createdAt"`
}

func (TaskEvent) TableName() string { return "task_events" }

// EstimationAccuracy compares a task's estimate to its measured lead time.
// At most one row is written per completion transition.
type EstimationAccuracy struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	TaskID         string    `gorm:"column:task_id;index;not null" json:"taskId"`
	EstimatedHours int       `gorm:"column:estimated_hours;not null" json:"estimatedHours"`
	ActualHours    float64   `gorm:"column:actual_hours;not null" json:"actualHours"`
	AccuracyRatio  float64   `gorm:"column:accuracy_ratio;not null" json:"accuracyRatio"`
	ActorID        *string   `gorm:"column:user_id;index" json:"actorId,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"createdAt"`
}

func (EstimationAccuracy) TableName() string { return "estimation_accuracy" }
