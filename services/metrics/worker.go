package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"overscope/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AggregatePayload is the body of a metrics:aggregate:daily task. Date is a
// calendar day in 2006-01-02 form.
type AggregatePayload struct {
	OrganizationID string `json:"organization_id"`
	Date           string `json:"date"`
}

const dateLayout = "2006-01-02"

// EnqueueAll fans out one aggregation task per organization. When no asynq
// client is wired (single-process deployments) it falls back to running the
// aggregation inline.
func (a *Aggregator) EnqueueAll(ctx context.Context, date time.Time) error {
	if a.asynq == nil {
		return a.Run(ctx, date)
	}

	orgs, err := a.orgs.ListOrganizations(ctx)
	if err != nil {
		return err
	}

	day := Day(date)
	for _, org := range orgs {
		payload, err := json.Marshal(AggregatePayload{
			OrganizationID: org.ID,
			Date:           day.Format(dateLayout),
		})
		if err != nil {
			return err
		}

		_, err = a.asynq.EnqueueContext(ctx,
			asynq.NewTask(taskname.MetricsAggregateDaily, payload),
			asynq.Queue("metrics"),
			asynq.MaxRetry(3),
		)
		if err != nil {
			zap.L().Error("failed to enqueue metrics aggregation",
				zap.String("organization_id", org.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}

// HandleAggregateTask is the asynq worker side of EnqueueAll.
func (a *Aggregator) HandleAggregateTask(ctx context.Context, t *asynq.Task) error {
	var payload AggregatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid aggregate payload: %w", err)
	}

	date, err := time.ParseInLocation(dateLayout, payload.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid aggregate date %q: %w", payload.Date, err)
	}

	if _, err := a.AggregateOrganization(ctx, payload.OrganizationID, date); err != nil {
		return err
	}

	zap.L().Info("aggregated daily metrics",
		zap.String("organization_id", payload.OrganizationID),
		zap.String("date", payload.Date),
	)
	return nil
}

func RegisterHandlers(mux *asynq.ServeMux, a *Aggregator) {
	mux.HandleFunc(taskname.MetricsAggregateDaily, a.HandleAggregateTask)
}
