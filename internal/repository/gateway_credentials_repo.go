package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/multazero/backend/internal/models"
)

// GatewayCredentialsRepo reads company_gateway_credentials.
type GatewayCredentialsRepo struct {
	pool *pgxpool.Pool
}

func NewGatewayCredentialsRepo(pool *pgxpool.Pool) *GatewayCredentialsRepo {
	return &GatewayCredentialsRepo{pool: pool}
}

// Get returns (nil, nil) when the company has no credentials or an empty key.
func (r *GatewayCredentialsRepo) Get(ctx context.Context, companyID uuid.UUID) (*models.GatewayCredentials, error) {
	var c models.GatewayCredentials
	var baseURL, token *string
	err := r.pool.QueryRow(ctx, `
		SELECT company_id, api_key, base_url, webhook_token
		FROM company_gateway_credentials WHERE company_id = $1 AND api_key <> ''
	`, companyID).Scan(&c.CompanyID, &c.APIKey, &baseURL, &token)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.BaseURL = deref(baseURL)
	c.WebhookToken = deref(token)
	return &c, nil
}

// ListCompanyIDs returns every company with usable credentials.
func (r *GatewayCredentialsRepo) ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT company_id FROM company_gateway_credentials WHERE api_key <> '' ORDER BY company_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
