package metrics

import (
	"net/http"
	"time"

	"overscope/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, agg *Aggregator) {
	api := r.Group("/api/v1/organizations/:org_id")

	api.GET("/stats/rolling", func(c *gin.Context) {
		stats, err := agg.RollingStatsFor(c.Request.Context(), c.Param("org_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	api.GET("/metrics/daily", func(c *gin.Context) {
		date := Yesterday()
		if raw := c.Query("date"); raw != "" {
			parsed, err := time.ParseInLocation(dateLayout, raw, time.UTC)
			if err != nil {
				c.Error(errutil.BadRequest("date must be formatted as 2006-01-02"))
				return
			}
			date = parsed
		}

		metric, err := agg.DailyMetricFor(c.Request.Context(), c.Param("org_id"), date)
		if err != nil {
			c.Error(err)
			return
		}
		if metric == nil {
			c.Error(errutil.NotFound("no metrics aggregated for that date"))
			return
		}
		c.JSON(http.StatusOK, metric)
	})

	// manual trigger, mostly for backfills
	api.POST("/metrics/run", func(c *gin.Context) {
		date := Yesterday()
		if raw := c.Query("date"); raw != "" {
			parsed, err := time.ParseInLocation(dateLayout, raw, time.UTC)
			if err != nil {
				c.Error(errutil.BadRequest("date must be formatted as 2006-01-02"))
				return
			}
			date = parsed
		}

		metric, err := agg.AggregateOrganization(c.Request.Context(), c.Param("org_id"), date)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, metric)
	})
}
