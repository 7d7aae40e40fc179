//go:build linux

package reachctl

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

func needsSudo() bool {
	return os.Geteuid() != 0
}

// Install writes the unit file and reloads systemd
func (b *UnitBuilder) Install(ctx context.Context) (string, error) {
	content, err := b.Render()
	if err != nil {
		return "", fmt.Errorf("generating unit file: %w", err)
	}

	unitPath := filepath.Join(b.UnitDir, b.UnitFileName())
	if err := b.writeUnitFile(ctx, unitPath, content); err != nil {
		return "", fmt.Errorf("writing unit file: %w", err)
	}
	if err := b.systemctl(ctx, "daemon-reload"); err != nil {
		return "", fmt.Errorf("reloading systemd: %w", err)
	}
	return unitPath, nil
}

// Enable enables the unit to start on boot
func (b *UnitBuilder) Enable(ctx context.Context) error {
	return b.systemctl(ctx, "enable", b.UnitFileName())
}

// writeUnitFile writes the unit file atomically, through sudo tee when unprivileged
func (b *UnitBuilder) writeUnitFile(ctx context.Context, path string, content string) error {
	if !b.UseSudo {
		return renameio.WriteFile(path, []byte(content), FileMode)
	}

	cmd := exec.CommandContext(ctx, b.SudoCommand, "tee", path)
	cmd.Stdin = strings.NewReader(content)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo tee failed: %w (output: %s)", err, out.String())
	}
	return nil
}

func (b *UnitBuilder) systemctl(ctx context.Context, args ...string) error {
	var cmd *exec.Cmd
	if b.UseSudo {
		cmd = exec.CommandContext(ctx, b.SudoCommand, append([]string{b.SystemctlPath}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, b.SystemctlPath, args...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl %s failed: %w (output: %s)", args[0], err, strings.TrimSpace(out.String()))
	}
	return nil
}
