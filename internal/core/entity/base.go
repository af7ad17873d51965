// Package entity holds fields shared by persisted records.
package entity

import (
	"time"

	"dairyflow/internal/core/id"
)

// BaseEntity carries identity, optimistic version and audit timestamps.
type BaseEntity struct {
	ID        id.ID     `db:"id" json:"id"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity assigns a fresh id and stamps both timestamps with now.
func NewBaseEntity(now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the version and UpdatedAt.
func (b *BaseEntity) Touch(now time.Time) {
	b.Version++
	b.UpdatedAt = now.UTC()
}
