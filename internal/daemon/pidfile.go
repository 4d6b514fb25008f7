package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFilename = "llmgateway.pid"

// ErrAlreadyRunning is returned by PIDFile.Acquire when a live process
// already owns the PID file.
var ErrAlreadyRunning = errors.New("llmgateway is already running")

// PIDFile tracks the daemon process in <data_dir>/llmgateway.pid.
type PIDFile struct {
	path string
}

// NewPIDFile returns the PID file for dataDir.
func NewPIDFile(dataDir string) *PIDFile {
	return &PIDFile{path: filepath.Join(dataDir, pidFilename)}
}

// Path returns the file location.
func (p *PIDFile) Path() string { return p.path }

// Acquire writes the current PID. A file left behind by a dead process is
// replaced; one owned by a live process yields ErrAlreadyRunning.
func (p *PIDFile) Acquire() error {
	if pid, err := p.Read(); err == nil {
		if pid != os.Getpid() && processAlive(pid) {
			return fmt.Errorf("%w (PID %d, %s)", ErrAlreadyRunning, pid, p.path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory for PID file: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("writing PID file %s: %w", p.path, err)
	}
	return nil
}

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file %s: %w", p.path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID from %s: %w", p.path, err)
	}
	return pid, nil
}

// Remove deletes the file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file %s: %w", p.path, err)
	}
	return nil
}

// Running reports whether the recorded process is alive.
func (p *PIDFile) Running() bool {
	pid, err := p.Read()
	if err != nil {
		return false
	}
	return processAlive(pid)
}

// processAlive sends signal 0, which checks existence without delivering
// anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
