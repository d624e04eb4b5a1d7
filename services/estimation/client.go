package estimation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"overscope/pkg/config"

	"go.uber.org/zap"
)

// Gateway is the typed boundary to the external estimation engine. Every
// method is total: remote failures degrade to a documented local result and
// are logged, so callers carry no failure branches for the engine.
type Gateway interface {
	Estimate(ctx context.Context, snap TaskSnapshot, userID string) EstimateResult
	TrackAccuracy(ctx context.Context, taskID string, estimatedHours int, actualHours float64, userID string) AccuracyResult
	Stats(ctx context.Context, userID, organizationID string) StatsResult
	ScoreTasks(ctx context.Context, tasks []TaskScore) []ScoredTask
	OptimizeSchedule(ctx context.Context, users []UserCapacity, tasks []ScheduleTask) ScheduleResult
	Simulate(ctx context.Context, users []UserCapacity, tasks []ScheduleTask, cfg SimulationConfig) SimulationResult
}

type Client struct {
	baseURL string
	http    *http.Client

	fallbackHours     map[int]int
	defaultComplexity int
}

// NewClient builds the engine client. The request timeout bounds every call;
// the fallback table comes from configuration (complexity -> hours).
func NewClient(cfg *config.Config) *Client {
	fallback := make(map[int]int, len(cfg.Estimation.FallbackHours))
	for k, v := range cfg.Estimation.FallbackHours {
		if c, err := strconv.Atoi(k); err == nil {
			fallback[c] = v
		}
	}
	if len(fallback) == 0 {
		fallback = map[int]int{1: 2, 2: 4, 3: 8, 4: 16, 5: 32}
	}

	defaultComplexity := cfg.Estimation.DefaultComplexity
	if defaultComplexity == 0 {
		defaultComplexity = 3
	}

	return &Client{
		baseURL:           cfg.TaskEngine.URL,
		http:              &http.Client{Timeout: cfg.TaskEngine.Timeout},
		fallbackHours:     fallback,
		defaultComplexity: defaultComplexity,
	}
}

// FallbackEstimate resolves the local estimate for a complexity level.
func (c *Client) FallbackEstimate(complexity int) int {
	if complexity == 0 {
		complexity = c.defaultComplexity
	}
	if h, ok := c.fallbackHours[complexity]; ok {
		return h
	}
	return c.fallbackHours[c.defaultComplexity]
}

func (c *Client) Estimate(ctx context.Context, snap TaskSnapshot, userID string) EstimateResult {
	if snap.Tags == nil {
		snap.Tags = []string{}
	}
	if snap.Complexity == 0 {
		snap.Complexity = c.defaultComplexity
	}

	var out EstimateResult
	err := c.post(ctx, "/estimate", estimateRequest{Task: snap, UserID: userID}, &out)
	if err != nil || out.EstimateHours <= 0 {
		zap.L().Warn("estimation engine unavailable, using fallback estimate",
			zap.String("task_id", snap.ID),
			zap.Int("complexity", snap.Complexity),
			zap.Error(err),
		)
		return EstimateResult{
			EstimateHours: c.FallbackEstimate(snap.Complexity),
			Method:        "fallback",
			Breakdown:     map[string]any{},
		}
	}
	return out
}

func (c *Client) TrackAccuracy(ctx context.Context, taskID string, estimatedHours int, actualHours float64, userID string) AccuracyResult {
	req := trackAccuracyRequest{
		TaskID:         taskID,
		EstimatedHours: estimatedHours,
		ActualHours:    actualHours,
		UserID:         userID,
	}

	var out AccuracyResult
	if err := c.post(ctx, "/estimate/track-accuracy", req, &out); err != nil {
		zap.L().Warn("failed to track estimation accuracy",
			zap.String("task_id", taskID), zap.Error(err))
		return AccuracyResult{Status: "error"}
	}
	return out
}

func (c *Client) Stats(ctx context.Context, userID, organizationID string) StatsResult {
	params := url.Values{}
	if userID != "" {
		params.Set("userId", userID)
	}
	if organizationID != "" {
		params.Set("organizationId", organizationID)
	}

	var out StatsResult
	if err := c.get(ctx, "/estimate/stats", params, &out); err != nil {
		zap.L().Warn("failed to fetch estimation stats", zap.Error(err))
		return StatsResult{}
	}
	return out
}

func (c *Client) ScoreTasks(ctx context.Context, tasks []TaskScore) []ScoredTask {
	var out []ScoredTask
	if err := c.post(ctx, "/score-tasks", tasks, &out); err != nil {
		zap.L().Warn("failed to score tasks", zap.Int("count", len(tasks)), zap.Error(err))
		return []ScoredTask{}
	}
	return out
}

func (c *Client) OptimizeSchedule(ctx context.Context, users []UserCapacity, tasks []ScheduleTask) ScheduleResult {
	var out ScheduleResult
	if err := c.post(ctx, "/optimize-schedule", optimizeScheduleRequest{Users: users, Tasks: tasks}, &out); err != nil {
		zap.L().Warn("failed to optimize schedule", zap.Error(err))
		return ScheduleResult{Assignments: []map[string]any{}, Score: 0}
	}
	if out.Assignments == nil {
		out.Assignments = []map[string]any{}
	}
	return out
}

func (c *Client) Simulate(ctx context.Context, users []UserCapacity, tasks []ScheduleTask, cfg SimulationConfig) SimulationResult {
	var out SimulationResult
	if err := c.post(ctx, "/simulate", simulateRequest{Users: users, Tasks: tasks, Config: cfg}, &out); err != nil {
		zap.L().Warn("failed to run simulation", zap.Error(err))
		return SimulationResult{Summary: map[string]any{}}
	}
	if out.Summary == nil {
		out.Summary = map[string]any{}
	}
	return out
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("engine returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
