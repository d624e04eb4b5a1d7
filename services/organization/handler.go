package organization

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func RegisterRoutes(r *gin.Engine, svc *Service) {
	api := r.Group("/api/v1")

	api.POST("/organizations", func(c *gin.Context) {
		var req createOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		org, err := svc.CreateOrganization(c.Request.Context(), req.Name)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, org)
	})

	api.GET("/organizations/:org_id", func(c *gin.Context) {
		org, err := svc.GetOrganization(c.Request.Context(), c.Param("org_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, org)
	})

	api.POST("/organizations/:org_id/projects", func(c *gin.Context) {
		var req createProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(err)
			return
		}
		project, err := svc.CreateProject(c.Request.Context(), CreateProjectInput{
			OrganizationID: c.Param("org_id"),
			Name:           req.Name,
			Description:    req.Description,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, project)
	})

	api.GET("/organizations/:org_id/projects", func(c *gin.Context) {
		projects, err := svc.ListProjects(c.Request.Context(), c.Param("org_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
	})
}
