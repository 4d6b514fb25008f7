package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/welinkai/llmgateway/internal/generator"
	"github.com/welinkai/llmgateway/internal/usage"
)

// handleHealth reports whether the store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health check: store unreachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.collector == nil {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Stats())
}

// generateRequest is the body of POST /v1/generate.
type generateRequest struct {
	PreferredProvider string `json:"preferred_provider"`
	SystemPrompt      string `json:"system_prompt"`
	Message           string `json:"message"`
	Context           string `json:"context"`
	OrganizationID    string `json:"organization_id"`
	AgentID           string `json:"agent_id"`
}

type generateResponse struct {
	Text      string  `json:"text"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	Cost      float64 `json:"cost"`
	Estimated bool    `json:"estimated"`
	UsageID   string  `json:"usage_id,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if s.opts.RateLimit != nil {
		if ok, retry := s.opts.RateLimit.Allow(req.OrganizationID); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded for organization")
			return
		}
	}

	cfg, err := s.registry.ResolveProvider(r.Context(), req.PreferredProvider)
	if err != nil {
		s.logger.Error().Err(err).Msg("resolving provider")
		writeError(w, http.StatusInternalServerError, "failed to resolve provider")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "no active provider")
		return
	}

	res, err := s.generator.GenerateResult(r.Context(), cfg, generator.Request{
		SystemPrompt:   req.SystemPrompt,
		Message:        req.Message,
		Context:        req.Context,
		OrganizationID: req.OrganizationID,
		AgentID:        req.AgentID,
	})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	resp := generateResponse{
		Text:      res.Text,
		Provider:  cfg.Name,
		Model:     res.Model,
		TokensIn:  res.TokensIn,
		TokensOut: res.TokensOut,
		Cost:      usage.Cost(res.TokensIn, res.TokensOut),
		Estimated: res.Estimated,
	}
	if res.Usage != nil {
		resp.UsageID = res.Usage.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// usageFilter builds a usage.Filter from ?organization_id, ?agent_id,
// ?provider_id, ?range (e.g. 7d), ?limit and ?offset.
func usageFilter(r *http.Request) (usage.Filter, error) {
	q := r.URL.Query()
	f := usage.Filter{
		OrganizationID: q.Get("organization_id"),
		AgentID:        q.Get("agent_id"),
		Limit:          queryInt(r, "limit", 100),
		Offset:         queryInt(r, "offset", 0),
	}
	if pid := q.Get("provider_id"); pid != "" {
		id, err := strconv.ParseInt(pid, 10, 64)
		if err != nil {
			return f, err
		}
		f.ProviderID = id
	}
	if rng := q.Get("range"); rng != "" {
		d, err := parseDurationParam(rng)
		if err != nil {
			return f, err
		}
		f.Since = time.Now().UTC().Add(-d)
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	return f, nil
}

func (s *Server) handleListUsage(w http.ResponseWriter, r *http.Request) {
	f, err := usageFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query parameter")
		return
	}
	records, err := s.store.ListUsage(r.Context(), f)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing usage")
		writeError(w, http.StatusInternalServerError, "failed to list usage")
		return
	}
	if records == nil {
		records = []*usage.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	f, err := usageFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query parameter")
		return
	}
	summaries, err := s.store.SummarizeUsage(r.Context(), f)
	if err != nil {
		s.logger.Error().Err(err).Msg("summarizing usage")
		writeError(w, http.StatusInternalServerError, "failed to summarize usage")
		return
	}
	if summaries == nil {
		summaries = []usage.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}
