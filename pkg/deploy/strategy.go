package deploy

// Auto-selection thresholds. Multi-file installs put every path on one
// command line, so large or path-heavy units go through a session instead.
const (
	sessionFileCountThreshold  = 8
	sessionTotalPathThreshold  = 6000
	sessionSinglePathThreshold = 200
	sessionPayloadThreshold    = 100 << 20 // 100 MB
)

// SelectStrategy decides how a unit is installed on a device. An explicit
// option wins; Auto applies the thresholds above.
func SelectStrategy(unit InstallationUnit, options DeviceInstallOptions) InstallStrategy {
	switch options.Strategy {
	case StrategyMultiFile:
		return StrategyMultiFile
	case StrategySession:
		return StrategySession
	}

	if unit.FileCount() >= sessionFileCountThreshold {
		return StrategySession
	}

	totalPath := 0
	for _, f := range unit.Files() {
		totalPath += len(f.Path)
		if len(f.Path) > sessionSinglePathThreshold {
			return StrategySession
		}
	}
	if totalPath > sessionTotalPathThreshold {
		return StrategySession
	}

	if unit.TotalSize() > sessionPayloadThreshold {
		return StrategySession
	}

	return StrategyMultiFile
}
