package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/welinkai/llmgateway/internal/usage"
)

// InsertUsage appends one usage record.
func (s *Store) InsertUsage(ctx context.Context, r *usage.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_records (
			id, timestamp, provider_id, provider_name, model,
			tokens_in, tokens_out, cost, organization_id, agent_id, estimated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.Timestamp.UTC(), r.ProviderID, r.ProviderName, r.Model,
		r.TokensIn, r.TokensOut, r.Cost, r.OrganizationID, r.AgentID, r.Estimated,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert usage: %w", err)
	}
	return nil
}

// usageWhere builds a positional WHERE clause for f.
func usageWhere(f usage.Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+" $"+strconv.Itoa(len(args)))
	}
	if f.OrganizationID != "" {
		add("organization_id =", f.OrganizationID)
	}
	if f.AgentID != "" {
		add("agent_id =", f.AgentID)
	}
	if f.ProviderID != 0 {
		add("provider_id =", f.ProviderID)
	}
	if !f.Since.IsZero() {
		add("timestamp >=", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		add("timestamp <", f.Until.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListUsage returns usage records matching f, newest first.
func (s *Store) ListUsage(ctx context.Context, f usage.Filter) ([]*usage.Record, error) {
	where, args := usageWhere(f)
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	n := len(args)
	args = append(args, limit, f.Offset)

	query := `SELECT id, timestamp, provider_id, provider_name, model,
       tokens_in, tokens_out, cost, organization_id, agent_id, estimated
FROM usage_records` + where + `
ORDER BY timestamp DESC, id ASC
LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list usage: %w", err)
	}
	defer rows.Close()

	var results []*usage.Record
	for rows.Next() {
		r := &usage.Record{}
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.ProviderID, &r.ProviderName, &r.Model,
			&r.TokensIn, &r.TokensOut, &r.Cost, &r.OrganizationID, &r.AgentID, &r.Estimated,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan usage row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list usage iteration: %w", err)
	}
	return results, nil
}

// SummarizeUsage aggregates records matching f per organization.
func (s *Store) SummarizeUsage(ctx context.Context, f usage.Filter) ([]usage.Summary, error) {
	where, args := usageWhere(f)
	rows, err := s.pool.Query(ctx, `SELECT organization_id, COUNT(*),
       COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0), COALESCE(SUM(cost), 0)
FROM usage_records`+where+`
GROUP BY organization_id
ORDER BY organization_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: summarize usage: %w", err)
	}
	defer rows.Close()

	var results []usage.Summary
	for rows.Next() {
		var sum usage.Summary
		if err := rows.Scan(&sum.OrganizationID, &sum.Requests, &sum.TokensIn, &sum.TokensOut, &sum.Cost); err != nil {
			return nil, fmt.Errorf("postgres: scan usage summary: %w", err)
		}
		results = append(results, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: summarize usage iteration: %w", err)
	}
	return results, nil
}
