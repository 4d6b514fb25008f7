package registry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/config"
	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/testutil"
)

func TestSeed_CreatesThenUpdates(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	providers := map[string]config.ProviderConfig{
		"compat": {
			Name:     "OpenAI-Compat",
			Family:   "openai",
			APIKey:   "env:OPENAI_KEY",
			Models:   []string{"gpt-4", " gpt-4-mini "},
			Priority: 10,
			Active:   true,
		},
		"google-main": {
			APIKey:   "keyring://llmgateway/google-main",
			Priority: 5,
			Active:   true,
		},
	}

	res, err := Seed(ctx, st, providers, zerolog.Nop())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if res.Created != 2 || res.Updated != 0 {
		t.Errorf("first seed = %+v; want 2 created", res)
	}

	compat, err := st.GetProviderByName(ctx, "OpenAI-Compat")
	if err != nil {
		t.Fatalf("GetProviderByName: %v", err)
	}
	if compat.Models != "gpt-4,gpt-4-mini" {
		t.Errorf("Models = %q", compat.Models)
	}

	google, err := st.GetProviderByName(ctx, "google-main")
	if err != nil {
		t.Fatalf("GetProviderByName(google-main): %v", err)
	}
	if google.Family != provider.FamilyGemini {
		t.Errorf("inferred Family = %q; want gemini", google.Family)
	}

	providers["compat"] = config.ProviderConfig{
		Name:     "OpenAI-Compat",
		Family:   "openai",
		APIKey:   "env:OPENAI_KEY",
		Priority: 1,
		Active:   false,
	}
	res, err = Seed(ctx, st, providers, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if res.Created != 0 || res.Updated != 2 {
		t.Errorf("second seed = %+v; want 2 updated", res)
	}

	updated, err := st.GetProvider(ctx, compat.ID)
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if updated.Priority != 1 || updated.Models != "" {
		t.Errorf("provider not updated: %+v", updated)
	}
	if !updated.Active {
		t.Error("reseed should not change the active flag of an existing row")
	}
	if !updated.CreatedAt.Equal(compat.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", compat.CreatedAt, updated.CreatedAt)
	}

	all, err := st.ListProviders(ctx)
	if err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 providers after reseed, got %d", len(all))
	}
}

func TestSeed_ExplicitFamilyOverridesName(t *testing.T) {
	st := testutil.NewTestStore(t)
	_, err := Seed(context.Background(), st, map[string]config.ProviderConfig{
		"gpt-proxy": {Family: "unsupported", Active: true},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	got, err := st.GetProviderByName(context.Background(), "gpt-proxy")
	if err != nil {
		t.Fatalf("GetProviderByName: %v", err)
	}
	if got.Family != provider.FamilyUnsupported {
		t.Errorf("Family = %q; want unsupported", got.Family)
	}
}

func TestSeed_KeepsAdministratorChanges(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	providers := map[string]config.ProviderConfig{
		"gpt-proxy": {APIKey: "env:PROXY_KEY", Priority: 3, Active: true},
	}

	if _, err := Seed(ctx, st, providers, zerolog.Nop()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	p, err := st.GetProviderByName(ctx, "gpt-proxy")
	if err != nil {
		t.Fatalf("GetProviderByName: %v", err)
	}
	if p.Family != provider.FamilyOpenAI {
		t.Fatalf("inferred Family = %q; want openai", p.Family)
	}

	p.Family = provider.FamilyGemini
	p.Active = false
	if err := st.UpdateProvider(ctx, p); err != nil {
		t.Fatalf("UpdateProvider: %v", err)
	}

	providers["gpt-proxy"] = config.ProviderConfig{APIKey: "env:PROXY_KEY", Priority: 7, Active: true}
	if _, err := Seed(ctx, st, providers, zerolog.Nop()); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	got, err := st.GetProvider(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if got.Family != provider.FamilyGemini {
		t.Errorf("Family = %q; want the administrator's gemini", got.Family)
	}
	if got.Active {
		t.Error("deactivated provider was reactivated by reseed")
	}
	if got.Priority != 7 {
		t.Errorf("Priority = %d; want 7 from config", got.Priority)
	}
}

func TestSeed_ExplicitFamilyAppliesOnUpdate(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := Seed(ctx, st, map[string]config.ProviderConfig{
		"vertex": {Active: true},
	}, zerolog.Nop()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, err := Seed(ctx, st, map[string]config.ProviderConfig{
		"vertex": {Family: "gemini", Active: true},
	}, zerolog.Nop()); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	got, err := st.GetProviderByName(ctx, "vertex")
	if err != nil {
		t.Fatalf("GetProviderByName: %v", err)
	}
	if got.Family != provider.FamilyGemini {
		t.Errorf("Family = %q; want gemini", got.Family)
	}
}
