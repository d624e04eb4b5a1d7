package organization

import "time"

// Organization is the tenancy root. Projects belong to an organization and
// tasks belong to projects; daily metrics are keyed per organization.
type Organization struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Slug      string    `gorm:"column:slug;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Organization) TableName() string { return "organizations" }

type Project struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	OrganizationID string    `gorm:"column:organization_id;index;not null" json:"organizationId"`
	Name           string    `gorm:"column:name;not null" json:"name"`
	Slug           string    `gorm:"column:slug;index" json:"slug"`
	Description    string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }
