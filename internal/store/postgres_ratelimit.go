package store

import (
	"context"
	"database/sql"
	"errors"
)

func (p *Postgres) GetRateLimit(ctx context.Context, apiName, endpoint string) (RateLimit, bool, error) {
	var rl RateLimit
	err := p.pool.QueryRow(ctx, `
		SELECT api_name, endpoint, requests_remaining, requests_limit, reset_at, COALESCE(last_response, '')
		FROM rate_limits
		WHERE api_name = $1 AND endpoint = $2
	`, apiName, endpoint).Scan(&rl.APIName, &rl.Endpoint, &rl.RequestsRemaining, &rl.RequestsLimit, &rl.ResetAt, &rl.LastResponse)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RateLimit{}, false, nil
		}
		return RateLimit{}, false, err
	}
	return rl, true, nil
}

func (p *Postgres) TrackRateLimit(ctx context.Context, rl RateLimit) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO rate_limits (api_name, endpoint, requests_remaining, requests_limit, reset_at, last_response, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (api_name, endpoint) DO UPDATE
		SET requests_remaining = EXCLUDED.requests_remaining,
			requests_limit = EXCLUDED.requests_limit,
			reset_at = EXCLUDED.reset_at,
			last_response = EXCLUDED.last_response,
			updated_at = NOW()
	`, rl.APIName, rl.Endpoint, rl.RequestsRemaining, rl.RequestsLimit, rl.ResetAt, rl.LastResponse)
	return err
}

func (p *Postgres) ListRateLimits(ctx context.Context) ([]RateLimit, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT api_name, endpoint, requests_remaining, requests_limit, reset_at, COALESCE(last_response, '')
		FROM rate_limits
		ORDER BY api_name, endpoint
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RateLimit
	for rows.Next() {
		var rl RateLimit
		if err := rows.Scan(&rl.APIName, &rl.Endpoint, &rl.RequestsRemaining, &rl.RequestsLimit, &rl.ResetAt, &rl.LastResponse); err != nil {
			return nil, err
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}
