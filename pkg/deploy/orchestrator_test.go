package deploy

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

func writeText(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func noWait(o *Orchestrator) {
	o.wait = func(ctx context.Context, d time.Duration) error { return nil }
}

func onlineDevice(serial string) DeviceProps {
	return DeviceProps{
		Serial:  serial,
		ABIs:    []string{"arm64-v8a"},
		Density: 420,
		SDK:     33,
		State:   "device",
		Locale:  "en-US",
	}
}

func drainEvents(bus *EventBus) []Event {
	bus.Close()
	var events []Event
	for e := range bus.Events() {
		events = append(events, e)
	}
	return events
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestOrchestratorRunHappyPath(t *testing.T) {
	conn := newFakeConn()
	bus := NewEventBus(256)
	o := NewOrchestrator(conn, bus)
	noWait(o)

	unit := tempUnit(t, "com.example.app")
	files := append([]ApkFile{unit.Base}, unit.Splits...)

	summary, err := o.Run(context.Background(),
		files, []DeviceProps{onlineDevice("serial-1")}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Retries)
	assert.False(t, summary.Cancelled)

	events := drainEvents(bus)
	types := eventTypes(events)
	assert.Equal(t, []EventType{
		EventPlanBuilt, EventUnitStarted, EventUnitSucceeded,
		EventDeviceCompleted, EventAllCompleted,
	}, types)

	// The last event carries the summary.
	require.NotNil(t, events[len(events)-1].Summary)
	assert.Equal(t, 1, events[len(events)-1].Summary.Succeeded)
}

func TestOrchestratorRetryBound(t *testing.T) {
	conn := newFakeConn()
	conn.installErr = errors.NewBridgeError("BRIDGE_COMMAND", "device hiccup")

	bus := NewEventBus(256)
	o := NewOrchestrator(conn, bus)
	noWait(o)

	unit := tempUnit(t, "com.example.app")
	files := append([]ApkFile{unit.Base}, unit.Splits...)

	options := DefaultOptions()
	options.MaxRetries = 2

	summary, err := o.Run(context.Background(),
		files, []DeviceProps{onlineDevice("serial-1")}, options)
	require.NoError(t, err, "unit failure does not fail the run")

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Retries)

	// MaxRetries+1 total attempts, each one bridge call.
	attempts := 0
	for _, call := range conn.calls {
		if strings.HasPrefix(call, "install-multiple") {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)

	retryEvents := 0
	for _, e := range drainEvents(bus) {
		if e.Type == EventRetryAttempt {
			retryEvents++
			assert.NotNil(t, e.Err)
		}
	}
	assert.Equal(t, 2, retryEvents)
}

func TestOrchestratorFailFast(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "install rejection",
			err: errors.New(errors.KindInstallRejected,
				"INSTALL_FAILED_VERSION_DOWNGRADE", "downgrade"),
		},
		{
			name: "missing file class",
			err:  errors.NewFileError("FILE_MISSING", "gone"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn()
			conn.installErr = tt.err

			o := NewOrchestrator(conn, nil)
			noWait(o)

			unit := tempUnit(t, "com.example.app")
			files := append([]ApkFile{unit.Base}, unit.Splits...)

			summary, err := o.Run(context.Background(),
				files, []DeviceProps{onlineDevice("serial-1")}, DefaultOptions())
			require.NoError(t, err)

			assert.Equal(t, 1, summary.Failed)
			assert.Zero(t, summary.Retries, "non-retryable failures are not retried")
		})
	}
}

func TestOrchestratorRecoversAfterRetry(t *testing.T) {
	conn := newFakeConn()
	conn.installErrs = []error{
		errors.NewBridgeError("BRIDGE_COMMAND", "transient"),
	}

	o := NewOrchestrator(conn, nil)
	noWait(o)

	unit := tempUnit(t, "com.example.app")
	files := append([]ApkFile{unit.Base}, unit.Splits...)

	summary, err := o.Run(context.Background(),
		files, []DeviceProps{onlineDevice("serial-1")}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Retries)
}

func TestOrchestratorOfflineDevice(t *testing.T) {
	conn := newFakeConn()
	bus := NewEventBus(256)
	o := NewOrchestrator(conn, bus)
	noWait(o)

	unit := tempUnit(t, "com.example.app")
	files := append([]ApkFile{unit.Base}, unit.Splits...)

	offline := onlineDevice("serial-off")
	offline.State = "offline"

	summary, err := o.Run(context.Background(),
		files, []DeviceProps{offline, onlineDevice("serial-1")}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded, "online device still installs")
	assert.Equal(t, 1, summary.Skipped, "offline device's unit is skipped")

	for _, call := range conn.calls {
		assert.NotContains(t, call, "serial-off", "no commands reach the offline device")
	}
}

func TestOrchestratorCancellation(t *testing.T) {
	conn := newFakeConn()
	o := NewOrchestrator(conn, nil)
	noWait(o)

	unit := tempUnit(t, "com.example.app")
	files := append([]ApkFile{unit.Base}, unit.Splits...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := o.Run(ctx, files, []DeviceProps{onlineDevice("serial-1")}, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, errors.KindCancelled, errors.KindOf(err))
	assert.True(t, summary.Cancelled)
	assert.Zero(t, summary.Succeeded)
}

func TestOrchestratorSingleFileFastPath(t *testing.T) {
	conn := newFakeConn()
	o := NewOrchestrator(conn, nil)
	noWait(o)

	dir := t.TempDir()
	b := base("com.example.app")
	b.Path = writeTempApk(t, dir, "base.apk", 1024)
	b.Size = 1024

	summary, err := o.Run(context.Background(),
		[]ApkFile{b}, []DeviceProps{onlineDevice("serial-1")}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Contains(t, conn.calls, "install-single serial-1")
}

func TestOrchestratorSessionStrategy(t *testing.T) {
	conn := newFakeConn()
	o := NewOrchestrator(conn, nil)
	noWait(o)

	unit := tempUnit(t, "com.example.app")
	files := append([]ApkFile{unit.Base}, unit.Splits...)

	options := DefaultOptions()
	options.Strategy = StrategySession

	summary, err := o.Run(context.Background(),
		files, []DeviceProps{onlineDevice("serial-1")}, options)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Contains(t, conn.calls, "create serial-1")
	assert.Contains(t, conn.calls, "commit 42")
}

func TestOrchestratorPreflightFailure(t *testing.T) {
	conn := newFakeConn()
	o := NewOrchestrator(conn, nil)
	noWait(o)

	dir := t.TempDir()
	b := base("com.example.app")
	// Real file without a ZIP header.
	b.Path = dir + "/not-an-apk.apk"
	require.NoError(t, writeText(b.Path, "plain text"))
	b.Size = 10

	summary, err := o.Run(context.Background(),
		[]ApkFile{b}, []DeviceProps{onlineDevice("serial-1")}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, conn.calls, "no bridge command for a file that fails preflight")
}

func TestBuildPlansDropsInvalidUnits(t *testing.T) {
	o := NewOrchestrator(nil, nil)

	good := tempUnit(t, "com.good.app")
	bad := InstallationUnit{
		Base:   base("com.bad.app"),
		Splits: []ApkFile{abiSplit("com.other.app", "arm64-v8a")},
	}

	plans := o.BuildPlans([]InstallationUnit{good, bad},
		[]DeviceProps{onlineDevice("serial-1")}, DefaultOptions())

	require.Len(t, plans, 1)
	require.Len(t, plans[0].Units, 1)
	assert.Equal(t, "com.good.app", plans[0].Units[0].PackageName())
}

func TestUnitLockIsStable(t *testing.T) {
	o := NewOrchestrator(nil, nil)

	l1 := o.unitLock("serial-1", "com.example.app")
	l2 := o.unitLock("serial-1", "com.example.app")
	l3 := o.unitLock("serial-2", "com.example.app")

	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
}
