//go:build linux

package reachctl

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// SystemdSupervisor runs the service as a native systemd unit.
// It shells out to systemctl, the same way operators do.
type SystemdSupervisor struct {
	// UnitName is the name of the systemd unit (without .service suffix)
	UnitName string

	// UseSudo indicates whether to use sudo for systemctl commands
	UseSudo bool

	// SudoCommand is the sudo command to use (default: "sudo")
	SudoCommand string

	// SystemctlPath is the path to systemctl binary
	SystemctlPath string

	// Timeout bounds every systemctl invocation
	Timeout time.Duration
}

// NewSystemdSupervisor creates a SystemdSupervisor for the specified unit
func NewSystemdSupervisor(unitName string) *SystemdSupervisor {
	return &SystemdSupervisor{
		UnitName:      unitName,
		UseSudo:       os.Geteuid() != 0,
		SudoCommand:   "sudo",
		SystemctlPath: "systemctl",
		Timeout:       10 * time.Second,
	}
}

// WithSudo configures sudo usage
func (s *SystemdSupervisor) WithSudo(use bool, command string) *SystemdSupervisor {
	s.UseSudo = use
	if command != "" {
		s.SudoCommand = command
	}
	return s
}

// Backend implements Supervisor
func (s *SystemdSupervisor) Backend() Backend {
	return BackendNative
}

// execSystemctl executes a systemctl verb against the unit with optional sudo
func (s *SystemdSupervisor) execSystemctl(ctx context.Context, args ...string) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	unit := fmt.Sprintf("%s.service", s.UnitName)
	fullArgs := append(args, unit)

	var cmd *exec.Cmd
	if s.UseSudo {
		sudoArgs := append([]string{s.SystemctlPath}, fullArgs...)
		cmd = exec.CommandContext(ctx, s.SudoCommand, sudoArgs...)
	} else {
		cmd = exec.CommandContext(ctx, s.SystemctlPath, fullArgs...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("systemctl %s: %w (stderr: %s)", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// IsActive reports whether systemd considers the unit active.
// systemctl is-active exits 3 for inactive units; any failure reads as inactive.
func (s *SystemdSupervisor) IsActive(ctx context.Context) bool {
	output, err := s.execSystemctl(ctx, "is-active")
	if err != nil {
		return false
	}
	return strings.TrimSpace(output) == "active"
}

// Exists reports whether systemd has a unit file loaded for the unit
func (s *SystemdSupervisor) Exists(ctx context.Context) bool {
	output, err := s.execSystemctl(ctx, "show", "-p", "LoadState", "--value")
	if err != nil {
		return false
	}
	state := strings.TrimSpace(output)
	return state != "" && state != "not-found"
}

// Start starts the unit
func (s *SystemdSupervisor) Start(ctx context.Context) error {
	_, err := s.execSystemctl(ctx, "start")
	return err
}

// Stop stops the unit
func (s *SystemdSupervisor) Stop(ctx context.Context) error {
	_, err := s.execSystemctl(ctx, "stop")
	return err
}

// Status returns the unit's systemd properties
func (s *SystemdSupervisor) Status(ctx context.Context) (*UnitStatus, error) {
	output, err := s.execSystemctl(ctx, "show", "--no-page")
	if err != nil {
		return nil, err
	}
	return parseUnitStatus(output), nil
}

// Describe returns a one-line summary of the unit for status display
func (s *SystemdSupervisor) Describe(ctx context.Context) string {
	status, err := s.Status(ctx)
	if err != nil {
		return ""
	}
	return status.String()
}

// UnitStatus represents the status of a systemd unit
type UnitStatus struct {
	// ActiveState is the active state (active, inactive, failed, etc.)
	ActiveState string

	// SubState is the sub state (running, dead, exited, etc.)
	SubState string

	// LoadState is the load state (loaded, not-found, error, etc.)
	LoadState string

	// MainPID is the main process ID (0 if not running)
	MainPID int

	// Result is the result of the last run (success, exit-code, signal, etc.)
	Result string
}

// String returns a human-readable status string
func (u *UnitStatus) String() string {
	if u.MainPID > 0 {
		return fmt.Sprintf("%s/%s (pid %d)", u.ActiveState, u.SubState, u.MainPID)
	}
	return fmt.Sprintf("%s/%s", u.ActiveState, u.SubState)
}

func parseUnitStatus(output string) *UnitStatus {
	status := &UnitStatus{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "ActiveState":
			status.ActiveState = value
		case "SubState":
			status.SubState = value
		case "LoadState":
			status.LoadState = value
		case "MainPID":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				status.MainPID = pid
			}
		case "Result":
			status.Result = value
		}
	}
	return status
}

// Ensure SystemdSupervisor implements Supervisor
var _ Supervisor = (*SystemdSupervisor)(nil)
