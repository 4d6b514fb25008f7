package vault

import (
	"os"
	"path/filepath"
	"testing"
)

func writeKeyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	return path
}

func TestResolveKeyRef(t *testing.T) {
	t.Setenv("LLMGATEWAY_TEST_SECRET", "sk-env")
	t.Setenv("LLMGATEWAY_KEY_GEMINI_PRIMARY", "g-key")
	os.Unsetenv("LLMGATEWAY_TEST_UNSET")

	keyFile := writeKeyFile(t, "sk-from-file\n")
	blankFile := writeKeyFile(t, "  \n")

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "env", ref: "env:LLMGATEWAY_TEST_SECRET", want: "sk-env"},
		{name: "env unset", ref: "env:LLMGATEWAY_TEST_UNSET", wantErr: true},
		{name: "file trims newline", ref: "file://" + keyFile, want: "sk-from-file"},
		{name: "file blank", ref: "file://" + blankFile, wantErr: true},
		{name: "file missing", ref: "file:///nonexistent/llmgateway/key", wantErr: true},
		{name: "keyring env fallback", ref: "keyring://llmgateway/gemini-primary", want: "g-key"},
		{name: "keyring without provider", ref: "keyring://llmgateway/", wantErr: true},
		{name: "keyring without service", ref: "keyring://gemini", wantErr: true},
		{name: "keyring foreign service", ref: "keyring://other/openai", wantErr: true},
		{name: "unknown scheme", ref: "vault:secret/openai", wantErr: true},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ResolveKeyRef(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ResolveKeyRef(%q) = %q; want error", tt.ref, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveKeyRef(%q): %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("ResolveKeyRef(%q) = %q; want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestResolve_RawKeyPassthrough(t *testing.T) {
	v := New()

	got, err := v.Resolve("sk-raw")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "sk-raw" {
		t.Errorf("got %q, want raw key unchanged", got)
	}
}

func TestIsKeyRef(t *testing.T) {
	tests := map[string]bool{
		"sk-raw":                   false,
		"":                         false,
		"env:X":                    true,
		"file:///etc/key":          true,
		"keyring://llmgateway/foo": true,
	}
	for value, want := range tests {
		if got := IsKeyRef(value); got != want {
			t.Errorf("IsKeyRef(%q) = %v; want %v", value, got, want)
		}
	}
}

func TestEnvVar(t *testing.T) {
	tests := map[string]string{
		"openai":        "LLMGATEWAY_KEY_OPENAI",
		"OpenAI-Compat": "LLMGATEWAY_KEY_OPENAI_COMPAT",
		"gemini 2":      "LLMGATEWAY_KEY_GEMINI_2",
	}
	for name, want := range tests {
		if got := EnvVar(name); got != want {
			t.Errorf("EnvVar(%q) = %q; want %q", name, got, want)
		}
	}
}

func TestGet_EnvFallback(t *testing.T) {
	t.Setenv(EnvVar("testprovider"), "env-key-value")

	got, err := New().Get("testprovider")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "env-key-value" {
		t.Errorf("Get = %q; want %q", got, "env-key-value")
	}
}

func TestGet_NoKeyFound(t *testing.T) {
	os.Unsetenv(EnvVar("noprovider"))

	if _, err := New().Get("noprovider"); err == nil {
		t.Fatal("expected error when no key is available")
	}
}

func TestList_ReportsAvailableNames(t *testing.T) {
	t.Setenv(EnvVar("listed"), "k")
	os.Unsetenv(EnvVar("absent"))

	got := New().List([]string{"listed", "absent"})
	if len(got) != 1 || got[0] != "listed" {
		t.Errorf("List = %v; want [listed]", got)
	}
}

func TestSet_RequiresName(t *testing.T) {
	if err := New().Set("", "k"); err == nil {
		t.Fatal("expected error for empty provider name")
	}
}
