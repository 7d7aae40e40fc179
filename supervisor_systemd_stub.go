//go:build !linux

package reachctl

import (
	"context"
	"errors"
)

var errSystemdUnsupported = errors.New("systemd is only supported on Linux")

// SystemdSupervisor runs the service as a native systemd unit (Linux only)
type SystemdSupervisor struct {
	UnitName string
}

// NewSystemdSupervisor creates a SystemdSupervisor (stub for non-Linux)
func NewSystemdSupervisor(unitName string) *SystemdSupervisor {
	return &SystemdSupervisor{UnitName: unitName}
}

// WithSudo is a no-op on this platform
func (s *SystemdSupervisor) WithSudo(_ bool, _ string) *SystemdSupervisor {
	return s
}

// Backend implements Supervisor
func (s *SystemdSupervisor) Backend() Backend {
	return BackendNative
}

// IsActive always reports false (stub - systemd is only supported on Linux)
func (s *SystemdSupervisor) IsActive(_ context.Context) bool {
	return false
}

// Exists always reports false (stub - systemd is only supported on Linux)
func (s *SystemdSupervisor) Exists(_ context.Context) bool {
	return false
}

// Start fails (stub - systemd is only supported on Linux)
func (s *SystemdSupervisor) Start(_ context.Context) error {
	return errSystemdUnsupported
}

// Stop fails (stub - systemd is only supported on Linux)
func (s *SystemdSupervisor) Stop(_ context.Context) error {
	return errSystemdUnsupported
}

// Describe returns an empty summary (stub - systemd is only supported on Linux)
func (s *SystemdSupervisor) Describe(_ context.Context) string {
	return ""
}

// Ensure SystemdSupervisor implements Supervisor
var _ Supervisor = (*SystemdSupervisor)(nil)
