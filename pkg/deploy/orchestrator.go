package deploy

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

// SingleInstaller is the optional single-file fast path. When the Conn also
// implements it, one-file units use `install` instead of `install-multiple`.
type SingleInstaller interface {
	InstallSingle(ctx context.Context, serial string, flags []string, path string) error
}

// Orchestrator drives a full installation run: plan per device, execute units
// sequentially per device, retry with backoff, and report over the event bus.
type Orchestrator struct {
	conn      Conn
	bus       *EventBus
	chunkSize int

	// wait is the inter-retry backoff sleeper, replaceable in tests.
	wait func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithChunkSize sets the session streaming chunk size.
func WithChunkSize(size int) Option {
	return func(o *Orchestrator) {
		o.chunkSize = size
	}
}

// NewOrchestrator creates an orchestrator over the given bridge connection.
// The bus may be nil when no subscriber is interested.
func NewOrchestrator(conn Conn, bus *EventBus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		conn:      conn,
		bus:       bus,
		chunkSize: DefaultChunkSize,
		locks:     make(map[string]*sync.Mutex),
		wait: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run is the end-to-end entry point: group, validate, plan, and execute.
func (o *Orchestrator) Run(ctx context.Context, files []ApkFile, devices []DeviceProps, options DeviceInstallOptions) (*InstallationSummary, error) {
	units, warnings := BuildUnits(files)
	for _, w := range warnings {
		o.publish(Event{
			Type:        EventWarning,
			PackageName: w.PackageName,
			Message:     fmt.Sprintf("group dropped: %s", w.Reason),
		})
	}

	plans := o.BuildPlans(units, devices, options)
	return o.Execute(ctx, plans)
}

// BuildPlans builds one DeviceInstallPlan per device. Invalid units are
// dropped for the whole run; incompatible units are skipped per device.
// Offline and unauthorized devices get a non-executable plan instead of
// aborting the run.
func (o *Orchestrator) BuildPlans(units []InstallationUnit, devices []DeviceProps, options DeviceInstallOptions) []DeviceInstallPlan {
	// Validate once per unit, not per device.
	valid := make([]InstallationUnit, 0, len(units))
	for _, unit := range units {
		result := Validate(unit, options)
		if !result.Valid {
			o.publish(Event{
				Type:        EventWarning,
				PackageName: unit.PackageName(),
				Message:     fmt.Sprintf("unit dropped: %s", joinFirst(result.Errors)),
			})
			continue
		}
		valid = append(valid, unit)
	}

	plans := make([]DeviceInstallPlan, 0, len(devices))
	for _, device := range devices {
		plan := DeviceInstallPlan{
			Serial:  device.Serial,
			Device:  device,
			Options: options,
		}

		if !device.Online() {
			// All units count as skipped for this device.
			for _, unit := range valid {
				plan.Skipped = append(plan.Skipped, SkippedUnit{
					PackageName: unit.PackageName(),
					Reason:      fmt.Sprintf("device %s", device.State),
				})
			}
			plans = append(plans, plan)
			o.publish(Event{Type: EventPlanBuilt, Serial: device.Serial,
				Message: fmt.Sprintf("device %s, 0 units", device.State)})
			continue
		}

		plan.CanExecute = true
		for _, unit := range valid {
			match, err := Match(unit, device, options)
			if err != nil {
				plan.Skipped = append(plan.Skipped, SkippedUnit{
					PackageName: unit.PackageName(),
					Reason:      err.Error(),
				})
				continue
			}
			for _, w := range match.Warnings {
				o.publish(Event{Type: EventWarning, Serial: device.Serial,
					PackageName: unit.PackageName(), Message: w})
			}
			plan.Units = append(plan.Units, match.Unit)
		}

		plans = append(plans, plan)
		o.publish(Event{Type: EventPlanBuilt, Serial: device.Serial,
			Message: fmt.Sprintf("%d units, %d skipped", len(plan.Units), len(plan.Skipped))})
	}

	return plans
}

// Execute runs the plans. Devices are processed sequentially; a failed unit
// does not abort its device and a failed device does not abort the run. Only
// cancellation escapes as an error.
func (o *Orchestrator) Execute(ctx context.Context, plans []DeviceInstallPlan) (*InstallationSummary, error) {
	start := time.Now()
	summary := &InstallationSummary{}

	for _, plan := range plans {
		summary.TotalUnits += len(plan.Units) + len(plan.Skipped)
	}

	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			break
		}

		for _, skipped := range plan.Skipped {
			summary.Skipped++
			o.publish(Event{
				Type:        EventUnitSkipped,
				Serial:      plan.Serial,
				PackageName: skipped.PackageName,
				Message:     skipped.Reason,
			})
		}

		if !plan.CanExecute {
			o.publish(Event{Type: EventDeviceCompleted, Serial: plan.Serial,
				Message: "skipped: device not executable"})
			continue
		}

		cancelled := false
		for _, unit := range plan.Units {
			if err := ctx.Err(); err != nil {
				cancelled = true
				break
			}

			o.publish(Event{Type: EventUnitStarted, Serial: plan.Serial,
				PackageName: unit.PackageName()})

			retries, err := o.installUnit(ctx, plan.Serial, unit, plan.Options)
			summary.Retries += retries

			switch {
			case err == nil:
				summary.Succeeded++
				o.publish(Event{Type: EventUnitSucceeded, Serial: plan.Serial,
					PackageName: unit.PackageName(), Attempt: retries + 1})
			case errors.KindOf(err) == errors.KindCancelled:
				cancelled = true
			default:
				summary.Failed++
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("%s on %s: %v", unit.PackageName(), plan.Serial, err))
				o.publish(Event{Type: EventUnitFailed, Serial: plan.Serial,
					PackageName: unit.PackageName(), Err: err})
			}

			if cancelled {
				break
			}
		}

		if cancelled {
			summary.Cancelled = true
			break
		}

		o.publish(Event{Type: EventDeviceCompleted, Serial: plan.Serial})
	}

	summary.Elapsed = time.Since(start)
	o.publish(Event{Type: EventAllCompleted, Summary: summary})

	if summary.Cancelled {
		return summary, errors.NewCancelled()
	}
	return summary, nil
}

// installUnit runs the per-unit retry loop and returns the retry count used.
func (o *Orchestrator) installUnit(ctx context.Context, serial string, unit InstallationUnit, options DeviceInstallOptions) (int, error) {
	ordered := InstallOrder(unit)

	// Local problems are detected before any device command and never retried.
	if err := preflight(ordered); err != nil {
		return 0, err
	}

	lock := o.unitLock(serial, unit.PackageName())

	var lastErr error
	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, errors.NewCancelled()
		}

		if attempt > 0 {
			o.publish(Event{Type: EventRetryAttempt, Serial: serial,
				PackageName: unit.PackageName(), Attempt: attempt, Err: lastErr})
			if err := o.wait(ctx, time.Duration(1+attempt)*time.Second); err != nil {
				return attempt, errors.NewCancelled()
			}
		}

		lastErr = o.installOnce(ctx, serial, unit, ordered, options, lock)
		if lastErr == nil {
			return attempt, nil
		}
		if errors.KindOf(lastErr) == errors.KindCancelled || !errors.IsRetryable(lastErr) {
			return attempt, lastErr
		}
	}

	return options.MaxRetries, lastErr
}

// installOnce performs a single attempt under the per-(device,package) lock.
func (o *Orchestrator) installOnce(ctx context.Context, serial string, unit InstallationUnit, ordered []ApkFile, options DeviceInstallOptions, lock *sync.Mutex) error {
	lock.Lock()
	defer lock.Unlock()

	switch SelectStrategy(unit, options) {
	case StrategySession:
		driver := newSessionDriver(o.conn, o.bus, o.chunkSize)
		return driver.install(ctx, serial, unit, ordered, options)
	default:
		if len(ordered) == 1 {
			if single, ok := o.conn.(SingleInstaller); ok {
				return single.InstallSingle(ctx, serial, options.InstallFlags(), ordered[0].Path)
			}
		}
		paths := make([]string, len(ordered))
		for i, f := range ordered {
			paths[i] = f.Path
		}
		return o.conn.InstallMultiple(ctx, serial, options.InstallFlags(), paths)
	}
}

// unitLock returns the mutex serializing installs of one package on one
// device, so a manual retry cannot race a scheduled one.
func (o *Orchestrator) unitLock(serial, pkg string) *sync.Mutex {
	key := serial + "\x00" + pkg

	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[key] = lock
	}
	return lock
}

func (o *Orchestrator) publish(e Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

// preflight checks every file locally before any device command is issued.
func preflight(files []ApkFile) error {
	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			return errors.NewFileError("FILE_MISSING",
				fmt.Sprintf("file not found: %s", f.Path)).WithContext("path", f.Path)
		}
		if info.Size() == 0 {
			return errors.NewFileError("FILE_EMPTY",
				fmt.Sprintf("file is empty: %s", f.Path)).WithContext("path", f.Path)
		}
		if err := checkZipMagic(f.Path); err != nil {
			return err
		}
	}
	return nil
}

// checkZipMagic rejects files that are not ZIP containers.
func checkZipMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewFileError("FILE_UNREADABLE",
			fmt.Sprintf("cannot read %s", path)).WithContext("path", path)
	}
	defer f.Close()

	magic := make([]byte, 2)
	if _, err := f.Read(magic); err != nil || magic[0] != 'P' || magic[1] != 'K' {
		return errors.NewFileError("FILE_NOT_ZIP",
			fmt.Sprintf("not an APK (missing ZIP header): %s", path)).WithContext("path", path)
	}
	return nil
}

func joinFirst(errs []string) string {
	if len(errs) == 0 {
		return "unknown"
	}
	return errs[0]
}
