package organization

import (
	"context"

	"overscope/pkg/errutil"
	"overscope/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	orgs     repository.Repository[Organization]
	projects repository.Repository[Project]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		orgs:     repository.ProvideStore[Organization](p.DB),
		projects: repository.ProvideStore[Project](p.DB),
	}
}

func (s *Service) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	if name == "" {
		return nil, errutil.ValidationFailed("organization name is required",
			errutil.WithDetails(errutil.Detail{Field: "name", Message: "must be present"}))
	}

	orgSlug := slug.Make(name)
	if exist, err := s.orgs.FindOne(ctx, &Organization{Slug: orgSlug}); err != nil {
		return nil, errutil.Internal("failed to check organization slug", errutil.WithErr(err))
	} else if exist != nil {
		return nil, errutil.Conflict("organization slug already exists")
	}

	org := &Organization{
		ID:   s.node.Generate().String(),
		Name: name,
		Slug: orgSlug,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		zap.L().Error("failed to create organization", zap.Error(err))
		return nil, errutil.Internal("failed to create organization", errutil.WithErr(err))
	}

	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	org, err := s.orgs.FindOne(ctx, &Organization{ID: orgID})
	if err != nil {
		return nil, errutil.Internal("failed to query organization", errutil.WithErr(err))
	}
	if org == nil {
		return nil, errutil.NotFound("organization not found")
	}
	return org, nil
}

// ListOrganizations returns every organization; the metrics aggregator fans
// out over this.
func (s *Service) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.orgs.Find(ctx, &Organization{})
}

type CreateProjectInput struct {
	OrganizationID string
	Name           string
	Description    string
}

func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*Project, error) {
	if in.Name == "" {
		return nil, errutil.ValidationFailed("project name is required",
			errutil.WithDetails(errutil.Detail{Field: "name", Message: "must be present"}))
	}

	if _, err := s.GetOrganization(ctx, in.OrganizationID); err != nil {
		return nil, err
	}

	project := &Project{
		ID:             s.node.Generate().String(),
		OrganizationID: in.OrganizationID,
		Name:           in.Name,
		Slug:           slug.Make(in.Name),
		Description:    in.Description,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		zap.L().Error("failed to create project", zap.Error(err))
		return nil, errutil.Internal("failed to create project", errutil.WithErr(err))
	}

	return project, nil
}

// GetProject resolves a project within its organization; a project outside
// the org scope is reported as not found.
func (s *Service) GetProject(ctx context.Context, orgID, projectID string) (*Project, error) {
	project, err := s.projects.FindOne(ctx, &Project{ID: projectID, OrganizationID: orgID})
	if err != nil {
		return nil, errutil.Internal("failed to query project", errutil.WithErr(err))
	}
	if project == nil {
		return nil, errutil.NotFound("project not found")
	}
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context, orgID string) ([]*Project, error) {
	return s.projects.Find(ctx, &Project{OrganizationID: orgID})
}
