// Package billing exports per-organization token usage to Stripe metered
// subscriptions.
package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/welinkai/llmgateway/internal/usage"
)

// DefaultConcurrency bounds in-flight Stripe calls when none is configured.
const DefaultConcurrency = 4

// OrgReport is the outcome for one organization in a sync window.
type OrgReport struct {
	OrganizationID   string `json:"organization_id"`
	SubscriptionItem string `json:"subscription_item"`
	Quantity         int64  `json:"quantity"`
	Requests         int64  `json:"requests"`
	Err              string `json:"error,omitempty"`
}

// Report summarizes one Sync call.
type Report struct {
	Since    time.Time   `json:"since"`
	Until    time.Time   `json:"until"`
	Reported []OrgReport `json:"reported"`
	Failed   []OrgReport `json:"failed"`
	Skipped  []string    `json:"skipped"`
}

// Syncer reads usage summaries and reports them to a UsageReporter.
type Syncer struct {
	reader      usage.Reader
	reporter    UsageReporter
	items       map[string]string
	concurrency int
	logger      zerolog.Logger
}

// NewSyncer creates a Syncer. items maps organization IDs to Stripe
// subscription item IDs.
func NewSyncer(reader usage.Reader, reporter UsageReporter, items map[string]string, concurrency int, logger zerolog.Logger) *Syncer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Syncer{
		reader:      reader,
		reporter:    reporter,
		items:       items,
		concurrency: concurrency,
		logger:      logger,
	}
}

// IdempotencyKey identifies one organization's report for a window.
func IdempotencyKey(orgID string, since, until time.Time) string {
	return fmt.Sprintf("%s:%d:%d", orgID, since.Unix(), until.Unix())
}

// Sync reports total tokens per organization for [since, until). Failures
// for individual organizations are collected in the report; the returned
// error is non-nil if reading usage failed or any report failed.
func (s *Syncer) Sync(ctx context.Context, since, until time.Time) (*Report, error) {
	if !until.After(since) {
		return nil, fmt.Errorf("billing: until %s must be after since %s", until.Format(time.RFC3339), since.Format(time.RFC3339))
	}

	summaries, err := s.reader.SummarizeUsage(ctx, usage.Filter{Since: since, Until: until})
	if err != nil {
		return nil, fmt.Errorf("billing: summarizing usage: %w", err)
	}

	report := &Report{
		Since:    since,
		Until:    until,
		Reported: []OrgReport{},
		Failed:   []OrgReport{},
		Skipped:  []string{},
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, sum := range summaries {
		quantity := sum.TotalTokens()
		if quantity <= 0 {
			continue
		}
		item, ok := s.items[sum.OrganizationID]
		if !ok || item == "" {
			report.Skipped = append(report.Skipped, sum.OrganizationID)
			continue
		}

		g.Go(func() error {
			or := OrgReport{
				OrganizationID:   sum.OrganizationID,
				SubscriptionItem: item,
				Quantity:         quantity,
				Requests:         sum.Requests,
			}
			key := IdempotencyKey(sum.OrganizationID, since, until)
			rerr := s.reporter.ReportUsage(gctx, item, quantity, until, key)

			mu.Lock()
			defer mu.Unlock()
			if rerr != nil {
				or.Err = rerr.Error()
				report.Failed = append(report.Failed, or)
				errs = append(errs, fmt.Errorf("organization %q: %w", sum.OrganizationID, rerr))
				s.logger.Error().Err(rerr).Str("organization_id", sum.OrganizationID).Msg("billing report failed")
				return nil
			}
			report.Reported = append(report.Reported, or)
			s.logger.Info().
				Str("organization_id", sum.OrganizationID).
				Str("subscription_item", item).
				Int64("quantity", quantity).
				Msg("billing usage reported")
			return nil
		})
	}
	_ = g.Wait()

	sortReports(report.Reported)
	sortReports(report.Failed)
	sort.Strings(report.Skipped)

	if len(report.Skipped) > 0 {
		s.logger.Warn().Strs("organizations", report.Skipped).Msg("organizations without a subscription item were skipped")
	}
	if len(errs) > 0 {
		return report, fmt.Errorf("billing: %d of %d reports failed: %w", len(errs), len(errs)+len(report.Reported), errors.Join(errs...))
	}
	return report, nil
}

func sortReports(rs []OrgReport) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].OrganizationID < rs[j].OrganizationID })
}
