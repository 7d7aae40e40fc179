//go:build !linux

package reachctl

import (
	"context"
	"errors"
)

func needsSudo() bool {
	return false
}

// Install is only supported on Linux
func (b *UnitBuilder) Install(ctx context.Context) (string, error) {
	return "", errors.New("systemd unit install is only supported on Linux")
}

// Enable is only supported on Linux
func (b *UnitBuilder) Enable(ctx context.Context) error {
	return errors.New("systemd unit enable is only supported on Linux")
}
