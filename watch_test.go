package reachctl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, ch <-chan WatchEvent) WatchEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
	return WatchEvent{}
}

func waitClosed(t *testing.T, ch <-chan WatchEvent) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed")
		}
	}
}

func TestWatchInitialAndFileChange(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "reach.env")
	require.NoError(t, os.WriteFile(settings, []byte("API_KEY=a\n"), FileMode))

	r := newTestReporter(t, &fakeNative{active: true}, newFakeRuntime(), closedEndpoint(t))
	ch, cleanup, err := r.Watch(context.Background(), time.Hour, settings)
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	ev := nextEvent(t, ch)
	assert.Equal(t, "initial", ev.Trigger)
	assert.Equal(t, NativeOwns, ev.Snapshot.Owner)

	require.NoError(t, os.WriteFile(settings, []byte("API_KEY=b\n"), FileMode))

	ev = nextEvent(t, ch)
	assert.Equal(t, settings, ev.Trigger)
	assert.NoError(t, ev.Err)
}

func TestWatchIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "reach.env")
	require.NoError(t, os.WriteFile(settings, nil, FileMode))

	r := newTestReporter(t, &fakeNative{}, newFakeRuntime(), closedEndpoint(t))
	ch, cleanup, err := r.Watch(context.Background(), time.Hour, settings, filepath.Join(dir, "absent"))
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	assert.Equal(t, "initial", nextEvent(t, ch).Trigger)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), FileMode))
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(3 * DefaultWatchDebounce):
	}
}

func TestWatchIntervalEmitsOnlyChanges(t *testing.T) {
	native := &fakeNative{}
	r := newTestReporter(t, native, newFakeRuntime(), closedEndpoint(t))
	ch, cleanup, err := r.Watch(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	assert.Equal(t, NoneOwns, nextEvent(t, ch).Snapshot.Owner)

	require.NoError(t, native.Start(context.Background()))

	ev := nextEvent(t, ch)
	assert.Equal(t, "interval", ev.Trigger)
	assert.Equal(t, NativeOwns, ev.Snapshot.Owner)
}

func TestWatchCleanupClosesChannel(t *testing.T) {
	r := newTestReporter(t, &fakeNative{}, newFakeRuntime(), closedEndpoint(t))
	ch, cleanup, err := r.Watch(context.Background(), time.Hour)
	require.NoError(t, err)

	nextEvent(t, ch)
	require.NoError(t, cleanup())
	waitClosed(t, ch)
}

func TestWatchContextCancelClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newTestReporter(t, &fakeNative{}, newFakeRuntime(), closedEndpoint(t))
	ch, cleanup, err := r.Watch(ctx, time.Hour)
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	nextEvent(t, ch)
	cancel()
	waitClosed(t, ch)
}

func TestSnapshotChanged(t *testing.T) {
	base := DeploymentSnapshot{Owner: NativeOwns, Health: HealthHealthy, ObservedAt: time.Unix(1, 0)}

	later := base
	later.ObservedAt = time.Unix(2, 0)
	later.HealthDetail = "different body"
	assert.False(t, snapshotChanged(base, later))

	later.Health = HealthUnknown
	assert.True(t, snapshotChanged(base, later))
}
