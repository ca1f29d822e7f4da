package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apkfleet/apkfleet-cli/pkg/apk"
	"github.com/apkfleet/apkfleet-cli/pkg/bridge"
	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
	"github.com/apkfleet/apkfleet-cli/pkg/utils"
)

// newBridge creates the adb bridge from the loaded config.
func newBridge() *bridge.Bridge {
	return bridge.New(cfg.Bridge.Path)
}

// newExtractor creates the APK metadata extractor from the loaded config.
func newExtractor() *apk.Extractor {
	return apk.NewExtractor(cfg.Tools.AAPTPath, cfg.Workers.Extract, utils.GetGlobalLogger())
}

// buildOptions merges config defaults into engine options.
func buildOptions() (deploy.DeviceInstallOptions, error) {
	options := deploy.DeviceInstallOptions{
		Reinstall:                cfg.Install.Reinstall,
		AllowDowngrade:           cfg.Install.AllowDowngrade,
		GrantPermissions:         cfg.Install.GrantPermissions,
		UserID:                   cfg.Install.UserID,
		VerifySignature:          cfg.Install.VerifySignature,
		VerifyVersionHomogeneity: cfg.Install.VerifyVersion,
		MaxRetries:               cfg.Install.MaxRetries,
		MaxTransferRate:          cfg.Install.MaxRateKBps * 1024,
	}

	match, err := deploy.ParseSplitMatchMode(cfg.Install.SplitMatch)
	if err != nil {
		return options, err
	}
	options.SplitMatch = match

	strategy, err := deploy.ParseInstallStrategy(cfg.Install.Strategy)
	if err != nil {
		return options, err
	}
	options.Strategy = strategy

	return options, nil
}

// collectApkPaths expands the command arguments into a flat list of APK
// files. Directory arguments are scanned one level deep.
func collectApkPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ".apk") {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no APK files found in arguments")
	}
	return paths, nil
}

// resolveDevices narrows the enriched device list to the requested targets.
// With no explicit serial and no --all, a configured default device is used
// when present; otherwise a single connected device is picked automatically.
func resolveDevices(ctx context.Context, b *bridge.Bridge, serial string, all bool) ([]deploy.DeviceProps, error) {
	devices, err := b.EnrichedDevices(ctx, cfg.Workers.Enrich)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices connected")
	}

	if serial == "" && !all {
		serial = cfg.Bridge.DefaultDevice
	}

	if serial != "" {
		for _, d := range devices {
			if d.Serial == serial {
				return []deploy.DeviceProps{d}, nil
			}
		}
		return nil, fmt.Errorf("device %s not found", serial)
	}

	if all {
		return devices, nil
	}

	var online []deploy.DeviceProps
	for _, d := range devices {
		if d.Online() {
			online = append(online, d)
		}
	}
	if len(online) == 1 {
		return online, nil
	}
	if len(online) == 0 {
		return nil, fmt.Errorf("no online devices; %d device(s) in other states", len(devices))
	}
	return nil, fmt.Errorf("%d devices online; pick one with --device or target all with --all", len(online))
}

// extractFiles runs extraction over the given paths and reports failures.
func extractFiles(ctx context.Context, paths []string) ([]deploy.ApkFile, error) {
	extractor := newExtractor()
	files, failures := extractor.ExtractAll(ctx, paths)

	for _, f := range failures {
		utils.Warn("skipping %s: %v", f.Path, f.Err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no APK files could be parsed")
	}
	return files, nil
}
