package estimation

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pass-through endpoints for the engine. Responses are always 200: the
// gateway converts engine failures into fallback values.
func RegisterRoutes(r *gin.Engine, gw Gateway) {
	api := r.Group("/api/v1")

	api.POST("/estimate", func(c *gin.Context) {
		var req struct {
			Task   TaskSnapshot `json:"task"`
			UserID string       `json:"userId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gw.Estimate(c.Request.Context(), req.Task, req.UserID))
	})

	api.GET("/estimate/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gw.Stats(c.Request.Context(), c.Query("user_id"), c.Query("organization_id")))
	})

	api.POST("/score-tasks", func(c *gin.Context) {
		var tasks []TaskScore
		if err := c.ShouldBindJSON(&tasks); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gw.ScoreTasks(c.Request.Context(), tasks))
	})

	api.POST("/optimize-schedule", func(c *gin.Context) {
		var req struct {
			Users []UserCapacity `json:"users"`
			Tasks []ScheduleTask `json:"tasks"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gw.OptimizeSchedule(c.Request.Context(), req.Users, req.Tasks))
	})

	api.POST("/simulate", func(c *gin.Context) {
		var req struct {
			Users  []UserCapacity   `json:"users"`
			Tasks  []ScheduleTask   `json:"tasks"`
			Config SimulationConfig `json:"config"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gw.Simulate(c.Request.Context(), req.Users, req.Tasks, req.Config))
	})
}
