package daemon

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderServiceUnit_Systemd(t *testing.T) {
	unit, err := RenderServiceUnit("linux", "/home/u", "/usr/local/bin/llmgateway", "/home/u/.llmgateway")
	if err != nil {
		t.Fatalf("RenderServiceUnit: %v", err)
	}
	if want := filepath.Join("/home/u", ".config", "systemd", "user", "llmgateway.service"); unit.Path != want {
		t.Errorf("Path = %q; want %q", unit.Path, want)
	}
	content := string(unit.Content)
	for _, want := range []string{
		"ExecStart=/usr/local/bin/llmgateway start --foreground",
		"WorkingDirectory=/home/u/.llmgateway",
		"Restart=on-failure",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("unit missing %q:\n%s", want, content)
		}
	}
}

func TestRenderServiceUnit_Launchd(t *testing.T) {
	unit, err := RenderServiceUnit("darwin", "/Users/u", "/opt/bin/llmgateway", "/Users/u/.llmgateway")
	if err != nil {
		t.Fatalf("RenderServiceUnit: %v", err)
	}
	if !strings.HasSuffix(unit.Path, "Library/LaunchAgents/ai.welink.llmgateway.plist") {
		t.Errorf("Path = %q", unit.Path)
	}
	content := string(unit.Content)
	if !strings.Contains(content, "<string>/opt/bin/llmgateway</string>") {
		t.Errorf("plist missing program path:\n%s", content)
	}
	if !strings.Contains(content, "<string>/Users/u/.llmgateway/llmgateway.err.log</string>") {
		t.Errorf("plist missing log path:\n%s", content)
	}
}

func TestRenderServiceUnit_Unsupported(t *testing.T) {
	if _, err := RenderServiceUnit("windows", "C:\\", "x", "y"); err == nil {
		t.Fatal("expected error for unsupported OS")
	}
}
