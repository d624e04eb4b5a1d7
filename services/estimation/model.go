package estimation

import "time"

// Wire types for the external task engine. Field names follow the engine's
// JSON contract.

// TaskSnapshot is the task state sent with an estimate request.
type TaskSnapshot struct {
	ID            string     `json:"id"`
	EstimateHours int        `json:"estimateHours,omitempty"`
	Priority      int        `json:"priority"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Status        string     `json:"status"`
	Complexity    int        `json:"complexity"`
	Tags          []string   `json:"tags"`
}

type estimateRequest struct {
	Task   TaskSnapshot `json:"task"`
	UserID string       `json:"userId,omitempty"`
}

// EstimateResult always carries a usable estimate; Method is "fallback" when
// the engine could not be reached.
type EstimateResult struct {
	EstimateHours int            `json:"estimateHours"`
	Method        string         `json:"method"`
	Breakdown     map[string]any `json:"breakdown"`
}

type trackAccuracyRequest struct {
	TaskID         string  `json:"taskId"`
	EstimatedHours int     `json:"estimatedHours"`
	ActualHours    float64 `json:"actualHours"`
	UserID         string  `json:"userId,omitempty"`
}

type AccuracyResult struct {
	Status string `json:"status"`
}

type StatsResult struct {
	TotalTasks       int     `json:"totalTasks"`
	AvgAccuracy      float64 `json:"avgAccuracy"`
	AvgOverestimate  float64 `json:"avgOverestimate"`
	AvgUnderestimate float64 `json:"avgUnderestimate"`
}

// TaskScore is one entry of a score-tasks request.
type TaskScore struct {
	ID         string     `json:"id"`
	Complexity int        `json:"complexity"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	Priority   int        `json:"priority"`
	Status     string     `json:"status"`
}

// ScoredTask is engine-defined and passed through opaquely.
type ScoredTask map[string]any

type UserCapacity struct {
	ID            string  `json:"id"`
	CapacityHours float64 `json:"capacityHours"`
}

type ScheduleTask struct {
	ID            string     `json:"id"`
	EstimateHours int        `json:"estimateHours"`
	Priority      int        `json:"priority"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Status        string     `json:"status"`
	Title         string     `json:"title"`
}

type optimizeScheduleRequest struct {
	Users []UserCapacity `json:"users"`
	Tasks []ScheduleTask `json:"tasks"`
}

type ScheduleResult struct {
	Assignments []map[string]any `json:"assignments"`
	Score       float64          `json:"score"`
}

type SimulationConfig struct {
	Weeks           int     `json:"weeks"`
	NewUserCapacity float64 `json:"newUserCapacity"`
	DropLowPriority bool    `json:"dropLowPriority"`
}

type simulateRequest struct {
	Users  []UserCapacity   `json:"users"`
	Tasks  []ScheduleTask   `json:"tasks"`
	Config SimulationConfig `json:"config"`
}

type SimulationResult struct {
	SuccessRate     float64        `json:"successRate"`
	WeeksToComplete float64        `json:"weeksToComplete"`
	Summary         map[string]any `json:"summary"`
}
