package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/usage"
)

func openCoreTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createTestProvider(t *testing.T, st *Store, name string, priority int, active bool) *provider.Provider {
	t.Helper()
	p := &provider.Provider{
		Name:     name,
		Family:   provider.InferFamily(name),
		APIKey:   "sk-" + name,
		Models:   "gpt-4,gpt-4-mini",
		Priority: priority,
		Active:   active,
	}
	if err := st.CreateProvider(context.Background(), p); err != nil {
		t.Fatalf("CreateProvider %q: %v", name, err)
	}
	return p
}

func TestOpen_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if st.Path() != path {
		t.Errorf("Path: got %q, want %q", st.Path(), path)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "test.db")
	st, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open with nested dir: %v", err)
	}
	st.Close()
}

func TestPing(t *testing.T) {
	st := openCoreTestStore(t)
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestWALMode(t *testing.T) {
	st := openCoreTestStore(t)

	var mode string
	if err := st.writer.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode: got %q, want %q", mode, "wal")
	}
}

func TestMigrations(t *testing.T) {
	st := openCoreTestStore(t)

	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("migration version: got %d, want %d", version, LatestVersion())
	}

	// Re-running is a no-op.
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestCreateProvider_GetProvider(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()

	p := &provider.Provider{
		Name:         "OpenAI-Compat",
		Family:       provider.FamilyOpenAI,
		APIKey:       "env:OPENAI_KEY",
		BaseURL:      "https://proxy.local/v1",
		Models:       "gpt-4,gpt-4-mini",
		DefaultModel: "gpt-4-mini",
		Priority:     10,
		Active:       true,
	}
	if err := st.CreateProvider(ctx, p); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := st.GetProvider(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if got.Name != p.Name || got.Family != p.Family || got.APIKey != p.APIKey {
		t.Errorf("got %+v, want %+v", got, p)
	}
	if got.BaseURL != p.BaseURL || got.Models != p.Models || got.DefaultModel != p.DefaultModel {
		t.Errorf("model fields: got %+v", got)
	}
	if got.Priority != 10 || !got.Active {
		t.Errorf("priority/active: got %d/%v", got.Priority, got.Active)
	}
	if !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, p.CreatedAt)
	}
}

func TestGetProvider_NotFound(t *testing.T) {
	st := openCoreTestStore(t)

	_, err := st.GetProvider(context.Background(), 999)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetProviderByName_CaseInsensitive(t *testing.T) {
	st := openCoreTestStore(t)
	created := createTestProvider(t, st, "Gemini", 5, true)

	got, err := st.GetProviderByName(context.Background(), "gemini")
	if err != nil {
		t.Fatalf("GetProviderByName: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID: got %d, want %d", got.ID, created.ID)
	}

	if _, err := st.GetProviderByName(context.Background(), "nope"); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateProvider_DuplicateName(t *testing.T) {
	st := openCoreTestStore(t)
	createTestProvider(t, st, "openai", 1, true)

	dup := &provider.Provider{Name: "OPENAI", Family: provider.FamilyOpenAI}
	if err := st.CreateProvider(context.Background(), dup); err == nil {
		t.Fatal("expected error for duplicate provider name")
	}
}

func TestListProviders_OrderedByID(t *testing.T) {
	st := openCoreTestStore(t)
	createTestProvider(t, st, "b-openai", 1, true)
	createTestProvider(t, st, "a-gemini", 9, false)

	list, err := st.ListProviders(context.Background())
	if err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d providers, want 2", len(list))
	}
	if list[0].Name != "b-openai" || list[1].Name != "a-gemini" {
		t.Errorf("order: got %q, %q", list[0].Name, list[1].Name)
	}
	if list[1].Active {
		t.Error("inactive provider reported active")
	}
}

func TestUpdateProvider(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	p := createTestProvider(t, st, "openai", 1, true)

	p.Priority = 42
	p.Model = "gpt-4o"
	if err := st.UpdateProvider(ctx, p); err != nil {
		t.Fatalf("UpdateProvider: %v", err)
	}

	got, err := st.GetProvider(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	if got.Priority != 42 || got.Model != "gpt-4o" {
		t.Errorf("got priority=%d model=%q", got.Priority, got.Model)
	}

	missing := &provider.Provider{ID: 404, Name: "ghost"}
	if err := st.UpdateProvider(ctx, missing); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetProviderActive(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	p := createTestProvider(t, st, "openai", 1, true)

	if err := st.SetProviderActive(ctx, p.ID, false); err != nil {
		t.Fatalf("SetProviderActive: %v", err)
	}
	got, _ := st.GetProvider(ctx, p.ID)
	if got.Active {
		t.Error("expected provider to be inactive")
	}

	if err := st.SetProviderActive(ctx, 999, true); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertUsage_ListUsage(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	p := createTestProvider(t, st, "openai", 1, true)

	now := time.Now().UTC().Truncate(time.Second)
	rec := &usage.Record{
		ID:             "u-1",
		Timestamp:      now,
		ProviderID:     p.ID,
		ProviderName:   p.Name,
		Model:          "gpt-4",
		TokensIn:       1000,
		TokensOut:      500,
		Cost:           usage.Cost(1000, 500),
		OrganizationID: "org-1",
		AgentID:        "agent-1",
		Estimated:      true,
	}
	if err := st.InsertUsage(ctx, rec); err != nil {
		t.Fatalf("InsertUsage: %v", err)
	}

	list, err := st.ListUsage(ctx, usage.Filter{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("ListUsage: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d records, want 1", len(list))
	}
	got := list[0]
	if got.ID != "u-1" || got.TokensIn != 1000 || got.TokensOut != 500 || !got.Estimated {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("Timestamp: got %v, want %v", got.Timestamp, now)
	}

	list, err = st.ListUsage(ctx, usage.Filter{OrganizationID: "org-2"})
	if err != nil {
		t.Fatalf("ListUsage other org: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("got %d records for org-2, want 0", len(list))
	}
}

func TestInsertUsage_UnknownProviderRejected(t *testing.T) {
	st := openCoreTestStore(t)

	err := st.InsertUsage(context.Background(), &usage.Record{ID: "x", Timestamp: time.Now(), ProviderID: 12345})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown provider")
	}
}

func TestListUsage_Pagination(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	p := createTestProvider(t, st, "openai", 1, true)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := &usage.Record{
			ID:         fmt.Sprintf("page-%d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			ProviderID: p.ID,
		}
		if err := st.InsertUsage(ctx, rec); err != nil {
			t.Fatalf("InsertUsage %d: %v", i, err)
		}
	}

	first, err := st.ListUsage(ctx, usage.Filter{Limit: 3})
	if err != nil {
		t.Fatalf("ListUsage: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("ListUsage(limit 3): got %d", len(first))
	}
	if first[0].ID != "page-4" {
		t.Errorf("newest first: got %q", first[0].ID)
	}

	rest, err := st.ListUsage(ctx, usage.Filter{Limit: 10, Offset: 3})
	if err != nil {
		t.Fatalf("ListUsage offset: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("ListUsage(offset 3): got %d, want 2", len(rest))
	}
}

func TestSummarizeUsage(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	p := createTestProvider(t, st, "openai", 1, true)

	now := time.Now().UTC()
	rows := []struct {
		org      string
		in, out  int
		offsetHr int
	}{
		{"org-a", 100, 50, 0},
		{"org-a", 200, 100, 0},
		{"org-b", 10, 10, 0},
		{"org-b", 999, 999, -48},
	}
	for i, r := range rows {
		rec := &usage.Record{
			ID:             fmt.Sprintf("sum-%d", i),
			Timestamp:      now.Add(time.Duration(r.offsetHr) * time.Hour),
			ProviderID:     p.ID,
			TokensIn:       r.in,
			TokensOut:      r.out,
			Cost:           usage.Cost(r.in, r.out),
			OrganizationID: r.org,
		}
		if err := st.InsertUsage(ctx, rec); err != nil {
			t.Fatalf("InsertUsage: %v", err)
		}
	}

	sums, err := st.SummarizeUsage(ctx, usage.Filter{Since: now.Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("SummarizeUsage: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d summaries, want 2", len(sums))
	}
	if sums[0].OrganizationID != "org-a" || sums[0].Requests != 2 || sums[0].TotalTokens() != 450 {
		t.Errorf("org-a summary: %+v", sums[0])
	}
	if sums[1].OrganizationID != "org-b" || sums[1].Requests != 1 || sums[1].TokensIn != 10 {
		t.Errorf("org-b summary: %+v", sums[1])
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	p := createTestProvider(t, st, "openai", 1, true)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &usage.Record{
				ID:         fmt.Sprintf("conc-%d", n),
				Timestamp:  time.Now(),
				ProviderID: p.ID,
			}
			if err := st.InsertUsage(ctx, rec); err != nil {
				t.Errorf("concurrent InsertUsage %d: %v", n, err)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = st.ListUsage(ctx, usage.Filter{Limit: 10})
		}()
	}

	wg.Wait()
}
