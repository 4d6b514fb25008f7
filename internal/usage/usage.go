package usage

import (
	"context"
	"time"
)

// Fixed per-token rates in USD, flat across every provider and model.
const (
	InputRate  = 0.0000015
	OutputRate = 0.000002
)

// Cost returns the USD cost for one generation.
func Cost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)*InputRate + float64(tokensOut)*OutputRate
}

// Record is one completed generation. Records are append-only; nothing
// updates or deletes them after insertion.
type Record struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ProviderID     int64     `json:"provider_id"`
	ProviderName   string    `json:"provider_name"`
	Model          string    `json:"model"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	Cost           float64   `json:"cost"`
	OrganizationID string    `json:"organization_id"`
	AgentID        string    `json:"agent_id"`
	Estimated      bool      `json:"estimated"`
}

// TotalTokens returns TokensIn + TokensOut.
func (r *Record) TotalTokens() int {
	return r.TokensIn + r.TokensOut
}

// Filter narrows ListUsage and SummarizeUsage. Zero values mean "any".
type Filter struct {
	OrganizationID string
	AgentID        string
	ProviderID     int64
	Since          time.Time
	Until          time.Time
	Limit          int
	Offset         int
}

// Summary aggregates usage for one organization.
type Summary struct {
	OrganizationID string  `json:"organization_id"`
	Requests       int64   `json:"requests"`
	TokensIn       int64   `json:"tokens_in"`
	TokensOut      int64   `json:"tokens_out"`
	Cost           float64 `json:"cost"`
}

// TotalTokens returns TokensIn + TokensOut.
func (s Summary) TotalTokens() int64 {
	return s.TokensIn + s.TokensOut
}

// Recorder persists usage records.
type Recorder interface {
	InsertUsage(ctx context.Context, r *Record) error
}

// Reader is the read side of a usage store.
type Reader interface {
	ListUsage(ctx context.Context, f Filter) ([]*Record, error)
	SummarizeUsage(ctx context.Context, f Filter) ([]Summary, error)
}
