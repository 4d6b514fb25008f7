package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger writes one usage record per successful generation. Persistence
// failures are logged and swallowed so they never fail a generation.
type Logger struct {
	rec    Recorder
	logger zerolog.Logger
	now    func() time.Time
}

// NewLogger creates a Logger that writes through rec.
func NewLogger(rec Recorder, logger zerolog.Logger) *Logger {
	return &Logger{
		rec:    rec,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// LogUsage computes the cost of a generation and persists it. It returns
// the stored record, or nil when nothing was stored.
func (l *Logger) LogUsage(ctx context.Context, providerID int64, providerName, model string, tokensIn, tokensOut int, orgID, agentID string, estimated bool) *Record {
	r := &Record{
		ID:             uuid.NewString(),
		Timestamp:      l.now(),
		ProviderID:     providerID,
		ProviderName:   providerName,
		Model:          model,
		TokensIn:       tokensIn,
		TokensOut:      tokensOut,
		Cost:           Cost(tokensIn, tokensOut),
		OrganizationID: orgID,
		AgentID:        agentID,
		Estimated:      estimated,
	}

	if l.rec == nil {
		return nil
	}

	// The generation already succeeded; a cancelled request context must
	// not drop its usage row.
	if err := l.rec.InsertUsage(context.WithoutCancel(ctx), r); err != nil {
		l.logger.Error().Err(err).
			Str("provider", providerName).
			Str("model", model).
			Str("organization_id", orgID).
			Msg("failed to record usage")
		return nil
	}

	l.logger.Debug().
		Str("id", r.ID).
		Str("provider", providerName).
		Str("model", model).
		Int("tokens_in", tokensIn).
		Int("tokens_out", tokensOut).
		Float64("cost", r.Cost).
		Bool("estimated", estimated).
		Msg("usage recorded")
	return r
}
