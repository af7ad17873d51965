// Package tenant implements database-per-tenant routing: every dairy business
// has its own PostgreSQL database described by a row in the meta database.
package tenant

import (
	"fmt"
	"strings"
	"time"
)

// Status is the tenant lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Tenant is a row of the meta database "tenants" table.
type Tenant struct {
	ID          string    `db:"id"`
	Slug        string    `db:"slug"`
	DisplayName string    `db:"display_name"`
	DBName      string    `db:"db_name"`
	DBHost      string    `db:"db_host"`
	DBPort      int       `db:"db_port"`
	Status      Status    `db:"status"`
	BillPrefix  string    `db:"bill_prefix"` // prefix of generated bill numbers
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// IsActive reports whether the tenant may serve requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// DSN builds the connection string of the tenant database.
func (t *Tenant) DSN(user, password, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, password, t.DBHost, t.DBPort, t.DBName, sslMode,
	)
}

// CreateInput holds data for provisioning a tenant.
type CreateInput struct {
	Slug        string
	DisplayName string
	BillPrefix  string
	DBHost      string
	DBPort      int
}

// Validate normalizes and checks the input.
func (i *CreateInput) Validate() error {
	i.Slug = strings.ToLower(strings.TrimSpace(i.Slug))
	if i.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(i.Slug) > 60 {
		return fmt.Errorf("slug must be 60 characters or less")
	}
	if i.DisplayName == "" {
		return fmt.Errorf("display name is required")
	}
	if i.BillPrefix == "" {
		i.BillPrefix = "MLK"
	}
	if i.DBHost == "" {
		i.DBHost = "localhost"
	}
	if i.DBPort == 0 {
		i.DBPort = 5432
	}
	return nil
}

// DBName derives the tenant database name ("dairy_<slug>").
func (i *CreateInput) DBName() string {
	return "dairy_" + strings.ReplaceAll(i.Slug, "-", "_")
}
