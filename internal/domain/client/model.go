// Package client is the read-only view of dairy clients used by billing.
// Clients are owned by the surrounding application.
package client

import (
	"context"

	"github.com/shopspring/decimal"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
)

// Client is a customer receiving daily milk deliveries.
type Client struct {
	ID                   id.ID           `db:"id" json:"id"`
	Name                 string          `db:"name" json:"name"`
	DefaultDailyQuantity decimal.Decimal `db:"default_daily_quantity" json:"defaultDailyQuantity"`
	RatePerLiter         decimal.Decimal `db:"rate_per_liter" json:"ratePerLiter"`
	IsActive             bool            `db:"is_active" json:"isActive"`
}

// Validate checks positivity of quantity and rate.
func (c *Client) Validate() error {
	if !c.DefaultDailyQuantity.IsPositive() {
		return apperror.NewValidation("default daily quantity must be positive").
			WithDetail("client_id", c.ID.String())
	}
	if !c.RatePerLiter.IsPositive() {
		return apperror.NewValidation("rate per liter must be positive").
			WithDetail("client_id", c.ID.String())
	}
	return nil
}

// Registry reads clients of the current tenant.
type Registry interface {
	// ListActive returns active clients ordered by name.
	ListActive(ctx context.Context) ([]*Client, error)

	// GetByID returns apperror NotFound for unknown ids.
	GetByID(ctx context.Context, clientID id.ID) (*Client, error)
}

// Billable fetches a client and rejects missing or inactive ones with INVALID_CLIENT.
func Billable(ctx context.Context, reg Registry, clientID id.ID) (*Client, error) {
	c, err := reg.GetByID(ctx, clientID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewInvalidClient(clientID.String())
		}
		return nil, err
	}
	if !c.IsActive {
		return nil, apperror.NewInvalidClient(clientID.String()).WithDetail("reason", "inactive")
	}
	return c, nil
}
