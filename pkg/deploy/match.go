package deploy

import (
	"fmt"
	"strings"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

// Density bucket upper bounds (dpi), half-open ranges. nodpi always matches.
const (
	maxLdpi   = 140
	maxMdpi   = 200
	maxHdpi   = 280
	maxXhdpi  = 400
	maxXxhdpi = 560
)

// densityCompatible reports whether a split's density bucket matches the
// device density.
func densityCompatible(bucket string, deviceDensity int) bool {
	if deviceDensity <= 0 {
		// Unknown device density is treated as permissive.
		return true
	}

	switch strings.ToLower(bucket) {
	case "nodpi":
		return true
	case "ldpi":
		return deviceDensity <= maxLdpi
	case "mdpi":
		return deviceDensity > maxLdpi && deviceDensity <= maxMdpi
	case "hdpi":
		return deviceDensity > maxMdpi && deviceDensity <= maxHdpi
	case "xhdpi":
		return deviceDensity > maxHdpi && deviceDensity <= maxXhdpi
	case "xxhdpi":
		return deviceDensity > maxXhdpi && deviceDensity <= maxXxhdpi
	case "xxxhdpi":
		return deviceDensity > maxXxhdpi
	default:
		return false
	}
}

// MatchResult carries the derived unit for a device plus any warnings the
// policy produced without failing the match.
type MatchResult struct {
	Unit     InstallationUnit
	Warnings []string
}

// Match derives the subset of a unit's splits installable on a device. The
// ABI, density, and locale filters run as a pipeline: each narrows the
// previous result, since a split can restrict on more than one axis.
// The original unit is never mutated.
func Match(unit InstallationUnit, device DeviceProps, options DeviceInstallOptions) (MatchResult, error) {
	// SDK gate: below the base's minimum the unit is not installable at all.
	if unit.Base.MinSDK > 0 && device.SDK > 0 && device.SDK < unit.Base.MinSDK {
		return MatchResult{}, errors.New(errors.KindIncompatibleSdk, "INCOMPATIBLE_SDK",
			fmt.Sprintf("%s requires SDK %d, device %s has SDK %d",
				unit.PackageName(), unit.Base.MinSDK, device.Serial, device.SDK)).
			WithContext("package", unit.PackageName()).
			WithContext("device", device.Serial)
	}

	// 1. ABI filter.
	kept := make([]ApkFile, 0, len(unit.Splits))
	for _, s := range unit.Splits {
		if s.ABI == "" || device.SupportsABI(s.ABI) {
			kept = append(kept, s)
		}
	}

	// 2. Density filter.
	next := kept[:0:len(kept)]
	for _, s := range kept {
		if s.Density == "" || densityCompatible(s.Density, device.Density) {
			next = append(next, s)
		}
	}
	kept = next

	// 3. Locale filter. An unset device locale is permissive.
	next = kept[:0:len(kept)]
	for _, s := range kept {
		if s.Locale == "" || device.Locale == "" || localeMatches(s.Locale, device.Locale) {
			next = append(next, s)
		}
	}
	kept = next

	derived := InstallationUnit{Base: unit.Base, Splits: kept}
	var warnings []string

	switch options.SplitMatch {
	case MatchStrict:
		if missing := missingRequiredSplits(unit.Base, kept); len(missing) > 0 {
			return MatchResult{}, errors.New(errors.KindMissingRequiredSplit, "MISSING_REQUIRED_SPLIT",
				fmt.Sprintf("%s requires splits not matched for device %s: %s",
					unit.PackageName(), device.Serial, strings.Join(missing, ", "))).
				WithContext("package", unit.PackageName()).
				WithContext("device", device.Serial)
		}

	case MatchBaseOnlyFallback:
		// The fallback reacts to detected content conflicts only. Missing
		// required splits behave like Relaxed but are surfaced as warnings
		// so a base-only install never hides them silently.
		if hasContentConflict(kept) {
			derived.Splits = nil
			warnings = append(warnings,
				fmt.Sprintf("split content conflict for %s; installing base only", unit.PackageName()))
		} else if missing := missingRequiredSplits(unit.Base, kept); len(missing) > 0 {
			warnings = append(warnings,
				fmt.Sprintf("required splits absent for %s: %s", unit.PackageName(), strings.Join(missing, ", ")))
		}
	}

	return MatchResult{Unit: derived, Warnings: warnings}, nil
}

func localeMatches(splitLocale, deviceLocale string) bool {
	s := strings.ToLower(strings.ReplaceAll(splitLocale, "_", "-"))
	d := strings.ToLower(strings.ReplaceAll(deviceLocale, "_", "-"))
	if s == d {
		return true
	}
	// A bare language split (e.g. "en") matches any region of that language.
	return strings.SplitN(d, "-", 2)[0] == s
}

func missingRequiredSplits(base ApkFile, kept []ApkFile) []string {
	if len(base.RequiredSplits) == 0 {
		return nil
	}

	present := make(map[string]bool, len(kept))
	for _, s := range kept {
		present[strings.ToLower(s.SplitName)] = true
	}

	var missing []string
	for _, name := range base.RequiredSplits {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	return missing
}

func hasContentConflict(splits []ApkFile) bool {
	seen := make(map[string]string, len(splits))
	for _, s := range splits {
		key := s.DiscriminatorKey()
		if prev, ok := seen[key]; ok && prev != s.SHA256 {
			return true
		}
		seen[key] = s.SHA256
	}
	return false
}
