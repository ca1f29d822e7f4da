package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

func arm64Phone() DeviceProps {
	return DeviceProps{
		Serial:  "emulator-5554",
		ABIs:    []string{"arm64-v8a", "armeabi-v7a"},
		Density: 420,
		SDK:     33,
		State:   "device",
		Locale:  "en-US",
	}
}

func TestDensityCompatible(t *testing.T) {
	tests := []struct {
		bucket  string
		density int
		want    bool
	}{
		{"ldpi", 120, true},
		{"ldpi", 160, false},
		{"mdpi", 160, true},
		{"mdpi", 240, false},
		{"hdpi", 240, true},
		{"xhdpi", 320, true},
		{"xhdpi", 420, false},
		{"xxhdpi", 420, true},
		{"xxhdpi", 561, false},
		{"xxxhdpi", 640, true},
		{"nodpi", 120, true},
		{"nodpi", 640, true},
		{"xhdpi", 0, true}, // unknown device density is permissive
		{"bogus", 420, false},
	}

	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			assert.Equal(t, tt.want, densityCompatible(tt.bucket, tt.density),
				"bucket %s vs %d dpi", tt.bucket, tt.density)
		})
	}
}

func TestMatchFiltersSplits(t *testing.T) {
	// Scenario: unit carrying two ABI splits, two density splits and two
	// locale splits against an arm64 xxhdpi en-US device.
	unit := InstallationUnit{
		Base: base("com.example.app"),
		Splits: []ApkFile{
			abiSplit("com.example.app", "arm64-v8a"),
			abiSplit("com.example.app", "x86_64"),
			densitySplit("com.example.app", "xxhdpi"),
			densitySplit("com.example.app", "mdpi"),
			localeSplit("com.example.app", "en"),
			localeSplit("com.example.app", "ja"),
		},
	}

	result, err := Match(unit, arm64Phone(), DefaultOptions())
	require.NoError(t, err)

	keys := make([]string, 0, len(result.Unit.Splits))
	for _, s := range result.Unit.Splits {
		keys = append(keys, s.DiscriminatorKey())
	}
	assert.ElementsMatch(t, []string{"abi_arm64-v8a", "dpi_xxhdpi", "locale_en"}, keys)
	assert.Equal(t, unit.Base, result.Unit.Base)
}

func TestMatchDoesNotMutateInput(t *testing.T) {
	unit := InstallationUnit{
		Base: base("com.example.app"),
		Splits: []ApkFile{
			abiSplit("com.example.app", "x86_64"),
			abiSplit("com.example.app", "arm64-v8a"),
		},
	}
	before := len(unit.Splits)

	_, err := Match(unit, arm64Phone(), DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, unit.Splits, before)
	assert.Equal(t, "x86_64", unit.Splits[0].ABI)
}

func TestMatchSdkGate(t *testing.T) {
	b := base("com.example.app")
	b.MinSDK = 30
	unit := InstallationUnit{Base: b}

	device := arm64Phone()
	device.SDK = 28

	_, err := Match(unit, device, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, errors.KindIncompatibleSdk, errors.KindOf(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestMatchStrictRequiredSplits(t *testing.T) {
	b := base("com.example.app")
	b.RequiredSplits = []string{"config.arm64_v8a"}

	x86 := abiSplit("com.example.app", "x86_64")
	x86.SplitName = "config.x86_64"

	unit := InstallationUnit{Base: b, Splits: []ApkFile{x86}}

	options := DefaultOptions()
	options.SplitMatch = MatchStrict

	// The only provided split is filtered out on ABI, so the required split
	// cannot be satisfied.
	_, err := Match(unit, arm64Phone(), options)
	require.Error(t, err)
	assert.Equal(t, errors.KindMissingRequiredSplit, errors.KindOf(err))
}

func TestMatchStrictSatisfied(t *testing.T) {
	b := base("com.example.app")
	b.RequiredSplits = []string{"config.arm64_v8a"}

	arm := abiSplit("com.example.app", "arm64-v8a")
	arm.SplitName = "config.arm64_v8a"

	unit := InstallationUnit{Base: b, Splits: []ApkFile{arm}}

	options := DefaultOptions()
	options.SplitMatch = MatchStrict

	result, err := Match(unit, arm64Phone(), options)
	require.NoError(t, err)
	assert.Len(t, result.Unit.Splits, 1)
}

func TestMatchBaseOnlyFallback(t *testing.T) {
	t.Run("content conflict drops splits", func(t *testing.T) {
		a := abiSplit("com.example.app", "arm64-v8a")
		a.SHA256 = "aaaa"
		b := abiSplit("com.example.app", "arm64-v8a")
		b.Path = "/elsewhere/split_config.arm64-v8a.apk"
		b.SHA256 = "bbbb"

		unit := InstallationUnit{Base: base("com.example.app"), Splits: []ApkFile{a, b}}

		options := DefaultOptions()
		options.SplitMatch = MatchBaseOnlyFallback

		result, err := Match(unit, arm64Phone(), options)
		require.NoError(t, err)
		assert.Empty(t, result.Unit.Splits)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "installing base only")
	})

	t.Run("missing required split warns but keeps splits", func(t *testing.T) {
		b := base("com.example.app")
		b.RequiredSplits = []string{"config.ja"}

		en := localeSplit("com.example.app", "en")
		en.SplitName = "config.en"

		unit := InstallationUnit{Base: b, Splits: []ApkFile{en}}

		options := DefaultOptions()
		options.SplitMatch = MatchBaseOnlyFallback

		result, err := Match(unit, arm64Phone(), options)
		require.NoError(t, err)
		assert.Len(t, result.Unit.Splits, 1)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "required splits absent")
	})
}

func TestMatchMonotonicity(t *testing.T) {
	// A device with strictly more capabilities never receives fewer splits.
	unit := InstallationUnit{
		Base: base("com.example.app"),
		Splits: []ApkFile{
			abiSplit("com.example.app", "arm64-v8a"),
			abiSplit("com.example.app", "x86_64"),
			localeSplit("com.example.app", "en"),
		},
	}

	narrow := arm64Phone()
	wide := arm64Phone()
	wide.ABIs = append(wide.ABIs, "x86_64", "x86")

	narrowResult, err := Match(unit, narrow, DefaultOptions())
	require.NoError(t, err)
	wideResult, err := Match(unit, wide, DefaultOptions())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(wideResult.Unit.Splits), len(narrowResult.Unit.Splits))
	for _, s := range narrowResult.Unit.Splits {
		assert.Contains(t, wideResult.Unit.Splits, s)
	}
}

func TestLocaleMatches(t *testing.T) {
	tests := []struct {
		split  string
		device string
		want   bool
	}{
		{"en", "en-US", true},
		{"en", "en", true},
		{"en-US", "en-US", true},
		{"en_US", "en-US", true},
		{"en-GB", "en-US", false},
		{"ja", "en-US", false},
		{"zh", "zh-Hans-CN", true},
	}

	for _, tt := range tests {
		t.Run(tt.split+"_"+tt.device, func(t *testing.T) {
			assert.Equal(t, tt.want, localeMatches(tt.split, tt.device))
		})
	}
}
