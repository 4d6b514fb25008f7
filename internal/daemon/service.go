package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"
)

const (
	launchdLabel = "ai.welink.llmgateway"
	systemdUnit  = "llmgateway.service"
)

const launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ProgramPath}}</string>
        <string>start</string>
        <string>--foreground</string>
    </array>
    <key>WorkingDirectory</key>
    <string>{{.DataDir}}</string>
    <key>KeepAlive</key>
    <true/>
    <key>RunAtLoad</key>
    <true/>
    <key>StandardErrorPath</key>
    <string>{{.DataDir}}/llmgateway.err.log</string>
    <key>ProcessType</key>
    <string>Background</string>
</dict>
</plist>
`

const systemdUnitTemplate = `[Unit]
Description=WeLink LLM gateway
After=network-online.target

[Service]
Type=simple
ExecStart={{.ProgramPath}} start --foreground
WorkingDirectory={{.DataDir}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

type unitData struct {
	Label       string
	ProgramPath string
	DataDir     string
}

// ServiceUnit is a rendered service definition and where it belongs.
type ServiceUnit struct {
	Path    string
	Content []byte
}

// RenderServiceUnit renders the user-level service definition for goos:
// a launchd agent on darwin, a systemd user unit elsewhere.
func RenderServiceUnit(goos, homeDir, programPath, dataDir string) (*ServiceUnit, error) {
	var (
		tmplText string
		path     string
	)
	switch goos {
	case "darwin":
		tmplText = launchdPlistTemplate
		path = filepath.Join(homeDir, "Library", "LaunchAgents", launchdLabel+".plist")
	case "linux":
		tmplText = systemdUnitTemplate
		path = filepath.Join(homeDir, ".config", "systemd", "user", systemdUnit)
	default:
		return nil, fmt.Errorf("service install is not supported on %s", goos)
	}

	tmpl, err := template.New("unit").Parse(tmplText)
	if err != nil {
		return nil, fmt.Errorf("parsing service template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, unitData{Label: launchdLabel, ProgramPath: programPath, DataDir: dataDir}); err != nil {
		return nil, fmt.Errorf("rendering service template: %w", err)
	}
	return &ServiceUnit{Path: path, Content: buf.Bytes()}, nil
}

// InstallService writes the service definition for this OS and loads it
// with launchctl or systemctl --user.
func InstallService(dataDir string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determining executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable symlinks: %w", err)
	}
	dataDir = expandHome(dataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	unit, err := RenderServiceUnit(runtime.GOOS, homeDir, execPath, dataDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(unit.Path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(unit.Path), err)
	}
	if err := os.WriteFile(unit.Path, unit.Content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", unit.Path, err)
	}
	fmt.Printf("Service definition written to %s\n", unit.Path)

	if runtime.GOOS == "darwin" {
		_ = exec.Command("launchctl", "unload", unit.Path).Run()
		return runVisible("launchctl", "load", unit.Path)
	}
	if err := runVisible("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return runVisible("systemctl", "--user", "enable", "--now", systemdUnit)
}

// UninstallService stops the service and removes its definition.
func UninstallService() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}
	unit, err := RenderServiceUnit(runtime.GOOS, homeDir, "", "")
	if err != nil {
		return err
	}

	if runtime.GOOS == "darwin" {
		_ = exec.Command("launchctl", "unload", unit.Path).Run()
	} else {
		_ = exec.Command("systemctl", "--user", "disable", "--now", systemdUnit).Run()
	}

	if err := os.Remove(unit.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", unit.Path, err)
	}
	fmt.Printf("Service removed (%s)\n", unit.Path)
	return nil
}

func runVisible(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
