// Package client_repo reads clients from the tenant database.
package client_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"dairyflow/internal/core/apperror"
	"dairyflow/internal/core/id"
	"dairyflow/internal/domain/client"
	"dairyflow/internal/infrastructure/storage/postgres"
)

const tableClients = "clients"

var clientColumns = postgres.Columns[client.Client]()

// ClientRepo implements client.Registry.
type ClientRepo struct{}

var _ client.Registry = (*ClientRepo)(nil)

func NewClientRepo() *ClientRepo { return &ClientRepo{} }

func selectClients() squirrel.SelectBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(clientColumns...).
		From(tableClients)
}

func (r *ClientRepo) ListActive(ctx context.Context) ([]*client.Client, error) {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	sql, args, err := selectClients().Where(squirrel.Eq{"is_active": true}).OrderBy("name", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []*client.Client
	if err := pgxscan.Select(ctx, q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return out, nil
}

func (r *ClientRepo) GetByID(ctx context.Context, clientID id.ID) (*client.Client, error) {
	q, err := postgres.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	sql, args, err := selectClients().Where(squirrel.Eq{"id": clientID}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var c client.Client
	if err := pgxscan.Get(ctx, q, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("client", clientID.String())
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}
