package deploy

import (
	"fmt"
	"strings"
	"time"
)

// SplitClass categorizes what a package file contributes to an install.
type SplitClass int

const (
	ClassBase SplitClass = iota
	ClassAbi
	ClassDensity
	ClassLocale
	ClassFeature
)

// String returns the string representation of the split class.
func (c SplitClass) String() string {
	switch c {
	case ClassBase:
		return "base"
	case ClassAbi:
		return "abi"
	case ClassDensity:
		return "density"
	case ClassLocale:
		return "locale"
	case ClassFeature:
		return "feature"
	default:
		return "unknown"
	}
}

// ApkFile is an immutable record of one package file. It is created by the
// metadata extractor and never mutated afterwards.
type ApkFile struct {
	Path        string `json:"path" yaml:"path"`
	PackageName string `json:"package_name" yaml:"package_name"`
	IsBase      bool   `json:"is_base" yaml:"is_base"`

	Class     SplitClass `json:"-" yaml:"-"`
	ABI       string     `json:"abi,omitempty" yaml:"abi,omitempty"`
	Density   string     `json:"density,omitempty" yaml:"density,omitempty"`
	Locale    string     `json:"locale,omitempty" yaml:"locale,omitempty"`
	SplitName string     `json:"split_name,omitempty" yaml:"split_name,omitempty"`

	VersionCode int64  `json:"version_code" yaml:"version_code"`
	VersionName string `json:"version_name,omitempty" yaml:"version_name,omitempty"`
	MinSDK      int    `json:"min_sdk,omitempty" yaml:"min_sdk,omitempty"`
	TargetSDK   int    `json:"target_sdk,omitempty" yaml:"target_sdk,omitempty"`

	Size         int64  `json:"size" yaml:"size"`
	SHA256       string `json:"sha256" yaml:"sha256"`
	SignerDigest string `json:"signer_digest,omitempty" yaml:"signer_digest,omitempty"`

	// RequiredSplits lists split names the base declares as required.
	RequiredSplits []string `json:"required_splits,omitempty" yaml:"required_splits,omitempty"`
}

// DiscriminatorKey returns the key two splits must not share with different
// content: abi_<x>, dpi_<x>, locale_<x>, feature_<name>.
func (f ApkFile) DiscriminatorKey() string {
	switch f.Class {
	case ClassAbi:
		return "abi_" + strings.ToLower(f.ABI)
	case ClassDensity:
		return "dpi_" + strings.ToLower(f.Density)
	case ClassLocale:
		return "locale_" + strings.ToLower(f.Locale)
	case ClassFeature:
		return "feature_" + strings.ToLower(f.SplitName)
	default:
		return "base"
	}
}

// InstallationUnit is one package's installable file set: exactly one base
// plus zero or more splits. Units are never mutated; re-matching for another
// device produces a new derived unit.
type InstallationUnit struct {
	Base   ApkFile   `json:"base" yaml:"base"`
	Splits []ApkFile `json:"splits,omitempty" yaml:"splits,omitempty"`
}

// PackageName returns the unit's package name.
func (u InstallationUnit) PackageName() string {
	return u.Base.PackageName
}

// Files returns the base followed by the splits.
func (u InstallationUnit) Files() []ApkFile {
	files := make([]ApkFile, 0, 1+len(u.Splits))
	files = append(files, u.Base)
	files = append(files, u.Splits...)
	return files
}

// FileCount returns the number of files in the unit.
func (u InstallationUnit) FileCount() int {
	return 1 + len(u.Splits)
}

// TotalSize returns the combined payload size in bytes.
func (u InstallationUnit) TotalSize() int64 {
	size := u.Base.Size
	for _, s := range u.Splits {
		size += s.Size
	}
	return size
}

// DeviceProps is a per-device snapshot taken once per planning pass.
type DeviceProps struct {
	Serial  string   `json:"serial" yaml:"serial"`
	Model   string   `json:"model,omitempty" yaml:"model,omitempty"`
	ABIs    []string `json:"abis,omitempty" yaml:"abis,omitempty"`
	Density int      `json:"density,omitempty" yaml:"density,omitempty"`
	SDK     int      `json:"sdk,omitempty" yaml:"sdk,omitempty"`
	State   string   `json:"state" yaml:"state"`
	Locale  string   `json:"locale,omitempty" yaml:"locale,omitempty"`
}

// Online reports whether the device accepts commands.
func (d DeviceProps) Online() bool {
	return d.State == "device"
}

// SupportsABI reports whether the device lists the ABI (case-insensitive).
func (d DeviceProps) SupportsABI(abi string) bool {
	for _, a := range d.ABIs {
		if strings.EqualFold(a, abi) {
			return true
		}
	}
	return false
}

// SplitMatchMode governs how missing or conflicting splits are handled.
type SplitMatchMode int

const (
	MatchRelaxed SplitMatchMode = iota
	MatchStrict
	MatchBaseOnlyFallback
)

// String returns the string representation of the match mode.
func (m SplitMatchMode) String() string {
	switch m {
	case MatchStrict:
		return "strict"
	case MatchBaseOnlyFallback:
		return "base-only"
	default:
		return "relaxed"
	}
}

// ParseSplitMatchMode maps a config string to a SplitMatchMode.
func ParseSplitMatchMode(s string) (SplitMatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relaxed":
		return MatchRelaxed, nil
	case "strict":
		return MatchStrict, nil
	case "base-only", "baseonly", "base_only":
		return MatchBaseOnlyFallback, nil
	default:
		return MatchRelaxed, fmt.Errorf("unknown split match mode: %q", s)
	}
}

// InstallStrategy selects the install protocol.
type InstallStrategy int

const (
	StrategyAuto InstallStrategy = iota
	StrategyMultiFile
	StrategySession
)

// String returns the string representation of the strategy.
func (s InstallStrategy) String() string {
	switch s {
	case StrategyMultiFile:
		return "multi"
	case StrategySession:
		return "session"
	default:
		return "auto"
	}
}

// ParseInstallStrategy maps a config string to an InstallStrategy.
func ParseInstallStrategy(s string) (InstallStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "multi", "multifile", "multi-file":
		return StrategyMultiFile, nil
	case "session":
		return StrategySession, nil
	default:
		return StrategyAuto, fmt.Errorf("unknown install strategy: %q", s)
	}
}

// DeviceInstallOptions is configuration supplied by the caller. The engine
// treats it as read-only.
type DeviceInstallOptions struct {
	Reinstall        bool            `json:"reinstall" yaml:"reinstall"`
	AllowDowngrade   bool            `json:"allow_downgrade" yaml:"allow_downgrade"`
	GrantPermissions bool            `json:"grant_permissions" yaml:"grant_permissions"`
	UserID           int             `json:"user_id" yaml:"user_id"` // -1 = default user
	SplitMatch       SplitMatchMode  `json:"-" yaml:"-"`
	Strategy         InstallStrategy `json:"-" yaml:"-"`

	VerifySignature          bool `json:"verify_signature" yaml:"verify_signature"`
	VerifyVersionHomogeneity bool `json:"verify_version" yaml:"verify_version"`

	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxTransferRate caps session streaming in bytes per second. 0 = unlimited.
	MaxTransferRate int64 `json:"max_transfer_rate,omitempty" yaml:"max_transfer_rate,omitempty"`
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() DeviceInstallOptions {
	return DeviceInstallOptions{
		Reinstall:                true,
		UserID:                   -1,
		VerifyVersionHomogeneity: true,
		MaxRetries:               2,
	}
}

// InstallFlags renders the bridge flags for these options.
func (o DeviceInstallOptions) InstallFlags() []string {
	var flags []string
	if o.Reinstall {
		flags = append(flags, "-r")
	}
	if o.AllowDowngrade {
		flags = append(flags, "-d")
	}
	if o.GrantPermissions {
		flags = append(flags, "-g")
	}
	if o.UserID >= 0 {
		flags = append(flags, "--user", fmt.Sprintf("%d", o.UserID))
	}
	return flags
}

// ValidationResult carries the outcome of unit validation. OrderedApks is the
// canonical install order and is only populated when the unit is valid.
type ValidationResult struct {
	Valid       bool
	Errors      []string
	OrderedApks []ApkFile
}

// DeviceInstallPlan pins the units matched to one device together with the
// options used. CanExecute is false for offline/unauthorized devices.
type DeviceInstallPlan struct {
	Serial     string               `json:"serial" yaml:"serial"`
	Device     DeviceProps          `json:"device" yaml:"device"`
	Units      []InstallationUnit   `json:"units" yaml:"units"`
	Skipped    []SkippedUnit        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Options    DeviceInstallOptions `json:"options" yaml:"options"`
	CanExecute bool                 `json:"can_execute" yaml:"can_execute"`
}

// SkippedUnit records a unit excluded from a device plan and why.
type SkippedUnit struct {
	PackageName string `json:"package_name" yaml:"package_name"`
	Reason      string `json:"reason" yaml:"reason"`
}

// InstallationSummary is the run-scoped accumulator. It is owned exclusively
// by the orchestrator's execution loop and emitted once at the end.
type InstallationSummary struct {
	TotalUnits int           `json:"total_units" yaml:"total_units"`
	Succeeded  int           `json:"succeeded" yaml:"succeeded"`
	Failed     int           `json:"failed" yaml:"failed"`
	Skipped    int           `json:"skipped" yaml:"skipped"`
	Retries    int           `json:"retries" yaml:"retries"`
	Cancelled  bool          `json:"cancelled" yaml:"cancelled"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
	Errors     []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
}
