//go:build linux

package reachctl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSystemctl writes a script that records its arguments to log
func fakeSystemctl(t *testing.T, script string) (path, log string) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "systemctl")
	log = filepath.Join(dir, "calls.log")
	content := "#!/bin/sh\necho \"$@\" >> " + log + "\n" + script
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path, log
}

func TestUnitBuilderInstall(t *testing.T) {
	systemctl, log := fakeSystemctl(t, "exit 0\n")
	cfg := Default()
	off := false
	cfg.Native.UseSudo = &off
	cfg.Native.UnitDir = t.TempDir()

	b := NewUnitBuilder(cfg)
	b.SystemctlPath = systemctl

	path, err := b.Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Native.UnitDir, DefaultUnitName+".service"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, want, string(data))

	require.NoError(t, b.Enable(context.Background()))

	calls, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, "daemon-reload\nenable "+DefaultUnitName+".service\n", string(calls))
}

func TestUnitBuilderInstallReloadFails(t *testing.T) {
	systemctl, _ := fakeSystemctl(t, "echo 'access denied' >&2\nexit 1\n")
	b := &UnitBuilder{
		Name:          "reach-server",
		ExecStart:     []string{"/bin/true"},
		UnitDir:       t.TempDir(),
		SystemctlPath: systemctl,
	}

	_, err := b.Install(context.Background())
	assert.ErrorContains(t, err, "reloading systemd")
	assert.ErrorContains(t, err, "access denied")
}
