package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/welinkai/llmgateway/internal/usage"
)

// InsertUsage appends one usage record. The caller supplies the ID.
func (s *Store) InsertUsage(ctx context.Context, r *usage.Record) error {
	_, err := s.writer.ExecContext(ctx, `
		INSERT INTO usage_records (
			id, timestamp, provider_id, provider_name, model,
			tokens_in, tokens_out, cost, organization_id, agent_id, estimated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.Timestamp), r.ProviderID, r.ProviderName, r.Model,
		r.TokensIn, r.TokensOut, r.Cost, r.OrganizationID, r.AgentID, boolToInt(r.Estimated),
	)
	if err != nil {
		return fmt.Errorf("store: insert usage: %w", err)
	}
	return nil
}

// usageWhere builds the WHERE clause shared by ListUsage and SummarizeUsage.
func usageWhere(f usage.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.OrganizationID != "" {
		conds = append(conds, "organization_id = ?")
		args = append(args, f.OrganizationID)
	}
	if f.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.ProviderID != 0 {
		conds = append(conds, "provider_id = ?")
		args = append(args, f.ProviderID)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, formatTime(f.Until))
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
	args = append(args, limit, f.Offset)

	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, timestamp, provider_id, provider_name, model,
		       tokens_in, tokens_out, cost, organization_id, agent_id, estimated
		FROM usage_records`+where+`
		ORDER BY timestamp DESC, id ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list usage: %w", err)
	}
	defer rows.Close()

	var results []*usage.Record
	for rows.Next() {
		r := &usage.Record{}
		var ts string
		var estimated int
		if err := rows.Scan(
			&r.ID, &ts, &r.ProviderID, &r.ProviderName, &r.Model,
			&r.TokensIn, &r.TokensOut, &r.Cost, &r.OrganizationID, &r.AgentID, &estimated,
		); err != nil {
			return nil, fmt.Errorf("store: scan usage row: %w", err)
		}
		r.Timestamp = parseTime(ts)
		r.Estimated = estimated != 0
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list usage iteration: %w", err)
	}
	return results, nil
}

// SummarizeUsage aggregates records matching f per organization, ordered
// by organization id. Limit and Offset are ignored.
func (s *Store) SummarizeUsage(ctx context.Context, f usage.Filter) ([]usage.Summary, error) {
	where, args := usageWhere(f)
	rows, err := s.reader.QueryContext(ctx, `
		SELECT organization_id,
		       COUNT(*),
		       COALESCE(SUM(tokens_in), 0),
		       COALESCE(SUM(tokens_out), 0),
		       COALESCE(SUM(cost), 0.0)
		FROM usage_records`+where+`
		GROUP BY organization_id
		ORDER BY organization_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: summarize usage: %w", err)
	}
	defer rows.Close()

	var results []usage.Summary
	for rows.Next() {
		var sum usage.Summary
		if err := rows.Scan(&sum.OrganizationID, &sum.Requests, &sum.TokensIn, &sum.TokensOut, &sum.Cost); err != nil {
			return nil, fmt.Errorf("store: scan usage summary: %w", err)
		}
		results = append(results, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: summarize usage iteration: %w", err)
	}
	return results, nil
}
