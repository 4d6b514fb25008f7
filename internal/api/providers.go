package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/welinkai/llmgateway/internal/provider"
)

// providerView is the API representation of a provider with its key masked.
type providerView struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Family       provider.Family `json:"family"`
	APIKey       string          `json:"api_key"`
	BaseURL      string          `json:"base_url,omitempty"`
	Models       []string        `json:"models"`
	Model        string          `json:"model,omitempty"`
	DefaultModel string          `json:"default_model,omitempty"`
	Priority     int             `json:"priority"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func viewOf(p *provider.Provider) providerView {
	models := p.ModelList()
	if models == nil {
		models = []string{}
	}
	return providerView{
		ID:           p.ID,
		Name:         p.Name,
		Family:       p.Family,
		APIKey:       maskKey(p.APIKey),
		BaseURL:      p.BaseURL,
		Models:       models,
		Model:        p.Model,
		DefaultModel: p.DefaultModel,
		Priority:     p.Priority,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// providerInput is the body of POST and PUT /v1/providers. Pointer fields
// distinguish "absent" from "zero" for partial updates.
type providerInput struct {
	Name         *string   `json:"name"`
	Family       *string   `json:"family"`
	APIKey       *string   `json:"api_key"`
	BaseURL      *string   `json:"base_url"`
	Models       *[]string `json:"models"`
	Model        *string   `json:"model"`
	DefaultModel *string   `json:"default_model"`
	Priority     *int      `json:"priority"`
	Active       *bool     `json:"active"`
}

// apply copies the present fields onto p and validates the result.
func (in *providerInput) apply(p *provider.Provider) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Family != nil {
		f, ok := provider.ParseFamily(*in.Family)
		if !ok {
			return errors.New("family must be one of gemini, openai, unsupported")
		}
		p.Family = f
	}
	if in.APIKey != nil {
		p.APIKey = strings.TrimSpace(*in.APIKey)
	}
	if in.BaseURL != nil {
		p.BaseURL = strings.TrimSpace(*in.BaseURL)
	}
	if in.Models != nil {
		p.Models = provider.JoinModels(*in.Models)
	}
	if in.Model != nil {
		p.Model = strings.TrimSpace(*in.Model)
	}
	if in.DefaultModel != nil {
		p.DefaultModel = strings.TrimSpace(*in.DefaultModel)
	}
	if in.Priority != nil {
		p.Priority = *in.Priority
	}
	if in.Active != nil {
		p.Active = *in.Active
	}

	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Priority < 0 {
		return errors.New("priority must be non-negative")
	}
	return nil
}

func providerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.store.ListProviders(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("listing providers")
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	views := make([]providerView, 0, len(providers))
	for _, p := range providers {
		views = append(views, viewOf(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	p, err := s.store.GetProvider(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var in providerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p := &provider.Provider{Active: true}
	if err := in.apply(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Family == nil {
		p.Family = provider.InferFamily(p.Name)
	}

	if _, err := s.store.GetProviderByName(r.Context(), p.Name); err == nil {
		writeError(w, http.StatusConflict, "a provider named "+strconv.Quote(p.Name)+" already exists")
		return
	} else if !errors.Is(err, provider.ErrNotFound) {
		s.logger.Error().Err(err).Msg("checking provider name")
		writeError(w, http.StatusInternalServerError, "failed to create provider")
		return
	}

	if err := s.store.CreateProvider(r.Context(), p); err != nil {
		s.logger.Error().Err(err).Str("provider", p.Name).Msg("creating provider")
		writeError(w, http.StatusInternalServerError, "failed to create provider")
		return
	}
	s.logger.Info().Int64("id", p.ID).Str("provider", p.Name).Str("family", string(p.Family)).Msg("provider created")
	writeJSON(w, http.StatusCreated, viewOf(p))
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	var in providerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := s.store.GetProvider(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if err := in.apply(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	other, err := s.store.GetProviderByName(r.Context(), p.Name)
	switch {
	case err == nil && other.ID != p.ID:
		writeError(w, http.StatusConflict, "a provider named "+strconv.Quote(p.Name)+" already exists")
		return
	case err != nil && !errors.Is(err, provider.ErrNotFound):
		s.logger.Error().Err(err).Int64("id", id).Msg("checking provider name")
		writeError(w, http.StatusInternalServerError, "failed to update provider")
		return
	}

	if err := s.store.UpdateProvider(r.Context(), p); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := providerID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid provider id")
			return
		}
		if err := s.store.SetProviderActive(r.Context(), id, active); err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
		p, err := s.store.GetProvider(r.Context(), id)
		if err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
		s.logger.Info().Int64("id", id).Bool("active", active).Msg("provider active flag changed")
		writeJSON(w, http.StatusOK, viewOf(p))
	}
}

// resolvedView describes the provider a generation would use right now.
type resolvedView struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Family       provider.Family `json:"family"`
	Model        string          `json:"model,omitempty"`
	DefaultModel string          `json:"default_model,omitempty"`
	Models       []string        `json:"models"`
}

func (s *Server) handleResolveProvider(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.registry.ResolveProvider(r.Context(), r.URL.Query().Get("preferred"))
	if err != nil {
		s.logger.Error().Err(err).Msg("resolving provider")
		writeError(w, http.StatusInternalServerError, "failed to resolve provider")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "no active provider")
		return
	}
	models := cfg.Models
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, resolvedView{
		ID:           cfg.ID,
		Name:         cfg.Name,
		Family:       cfg.Family,
		Model:        cfg.Model,
		DefaultModel: cfg.DefaultModel,
		Models:       models,
	})
}
