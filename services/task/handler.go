package task

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type createTaskRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      int        `json:"priority"`
	Complexity    *int       `json:"complexity"`
	EstimateHours *int       `json:"estimateHours"`
	DueDate       *time.Time `json:"dueDate"`
	ActorID       *string    `json:"actorId"`
}

type updateTaskRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Priority      *int       `json:"priority"`
	Complexity    *int       `json:"complexity"`
	EstimateHours *int       `json:"estimateHours"`
	DueDate       *time.Time `json:"dueDate"`
}

type transitionRequest struct {
	Status  string  `json:"status"`
	ActorID *string `json:"actorId"`
}

func RegisterRoutes(r *gin.Engine, svc *Service) {
	api := r.Group("/api/v1")

	api.POST("/projects/:project_id/tasks", func(c *gin.Context) {
		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		task, err := svc.Create(c.Request.Context(), CreateTaskInput{
			ProjectID:     c.Param("project_id"),
			Title:         req.Title,
			Description:   req.Description,
			Priority:      req.Priority,
			Complexity:    req.Complexity,
			EstimateHours: req.EstimateHours,
			DueDate:       req.DueDate,
			ActorID:       req.ActorID,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, task)
	})

	api.GET("/projects/:project_id/tasks", func(c *gin.Context) {
		ctx := c.Request.Context()
		projectID := c.Param("project_id")

		if c.Query("with_urgency") != "" {
			ranked, err := svc.ListByUrgency(ctx, projectID)
			if err != nil {
				c.Error(err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"tasks": ranked})
			return
		}

		tasks, err := svc.ListByProject(ctx, projectID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": tasks})
	})

	api.GET("/tasks/:task_id", func(c *gin.Context) {
		task, err := svc.Get(c.Request.Context(), c.Param("task_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, task)
	})

	api.GET("/tasks/:task_id/events", func(c *gin.Context) {
		events, err := svc.Events(c.Request.Context(), c.Param("task_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	api.PATCH("/tasks/:task_id", func(c *gin.Context) {
		var req updateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		task, err := svc.Update(c.Request.Context(), c.Param("task_id"), UpdateTaskInput{
			Title:         req.Title,
			Description:   req.Description,
			Priority:      req.Priority,
			Complexity:    req.Complexity,
			EstimateHours: req.EstimateHours,
			DueDate:       req.DueDate,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, task)
	})

	api.POST("/tasks/:task_id/transition", func(c *gin.Context) {
		var req transitionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		task, err := svc.Transition(c.Request.Context(), c.Param("task_id"), Status(req.Status), req.ActorID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, task)
	})

	api.DELETE("/tasks/:task_id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("task_id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.DELETE("/organizations/:org_id/projects/:project_id", func(c *gin.Context) {
		if err := svc.DeleteProject(c.Request.Context(), c.Param("org_id"), c.Param("project_id")); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
