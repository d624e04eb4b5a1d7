package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health",
	fx.Provide(New),
	fx.Invoke(RegisterRoutes),
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Health struct {
	Status string       `json:"status"`
	Deps   []Dependency `json:"deps,omitempty"`
}

type Service struct {
	db    *gorm.DB
	redis *redis.Client
}

type Params struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func New(p Params) *Service {
	return &Service{db: p.DB, redis: p.Redis}
}

func (s *Service) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, Health{Status: "ok"})
}

func (s *Service) Readiness(c *gin.Context) {
	deps := []Dependency{}
	status := "ok"
	code := http.StatusOK

	if s.db != nil {
		dep := Dependency{Name: "database", Status: "ok"}
		if sqlDB, err := s.db.DB(); err != nil {
			dep.Status, dep.Message = "down", err.Error()
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			dep.Status, dep.Message = "down", err.Error()
		}
		deps = append(deps, dep)
	}

	if s.redis != nil {
		dep := Dependency{Name: "redis", Status: "ok"}
		if err := s.redis.Ping(c.Request.Context()).Err(); err != nil {
			dep.Status, dep.Message = "down", err.Error()
		}
		deps = append(deps, dep)
	}

	for _, d := range deps {
		if d.Status != "ok" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Health{Status: status, Deps: deps})
}

func RegisterRoutes(r *gin.Engine, s *Service) {
	r.GET("/healthz", s.Liveness)
	r.GET("/readyz", s.Readiness)
}
