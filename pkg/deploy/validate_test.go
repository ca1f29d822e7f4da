package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		unit    InstallationUnit
		options DeviceInstallOptions
		valid   bool
		errPart string
	}{
		{
			name:    "empty unit",
			unit:    InstallationUnit{},
			options: DefaultOptions(),
			errPart: "no files",
		},
		{
			name: "valid base only",
			unit: InstallationUnit{Base: base("com.example.app")},
			options: DefaultOptions(),
			valid: true,
		},
		{
			name: "valid base plus splits",
			unit: InstallationUnit{
				Base:   base("com.example.app"),
				Splits: []ApkFile{abiSplit("com.example.app", "arm64-v8a")},
			},
			options: DefaultOptions(),
			valid:   true,
		},
		{
			name: "foreign package among splits",
			unit: InstallationUnit{
				Base:   base("com.example.app"),
				Splits: []ApkFile{abiSplit("com.other.app", "arm64-v8a")},
			},
			options: DefaultOptions(),
			errPart: "package name mismatch",
		},
		{
			name: "version heterogeneity rejected when enabled",
			unit: func() InstallationUnit {
				s := abiSplit("com.example.app", "arm64-v8a")
				s.VersionCode = 99
				return InstallationUnit{Base: base("com.example.app"), Splits: []ApkFile{s}}
			}(),
			options: DefaultOptions(),
			errPart: "version code mismatch",
		},
		{
			name: "version heterogeneity allowed when disabled",
			unit: func() InstallationUnit {
				s := abiSplit("com.example.app", "arm64-v8a")
				s.VersionCode = 99
				return InstallationUnit{Base: base("com.example.app"), Splits: []ApkFile{s}}
			}(),
			options: DeviceInstallOptions{MaxRetries: 2},
			valid:   true,
		},
		{
			name: "duplicate discriminator with different content",
			unit: func() InstallationUnit {
				a := abiSplit("com.example.app", "arm64-v8a")
				a.SHA256 = "aaaa"
				b := abiSplit("com.example.app", "arm64-v8a")
				b.Path = "/elsewhere/split_config.arm64-v8a.apk"
				b.SHA256 = "bbbb"
				return InstallationUnit{Base: base("com.example.app"), Splits: []ApkFile{a, b}}
			}(),
			options: DefaultOptions(),
			errPart: "duplicate split",
		},
		{
			name: "duplicate discriminator with identical content is fine",
			unit: func() InstallationUnit {
				a := abiSplit("com.example.app", "arm64-v8a")
				a.SHA256 = "aaaa"
				b := abiSplit("com.example.app", "arm64-v8a")
				b.Path = "/elsewhere/split_config.arm64-v8a.apk"
				b.SHA256 = "aaaa"
				return InstallationUnit{Base: base("com.example.app"), Splits: []ApkFile{a, b}}
			}(),
			options: DefaultOptions(),
			valid:   true,
		},
		{
			name: "signer proxy mismatch when enabled",
			unit: func() InstallationUnit {
				a := abiSplit("com.example.app", "arm64-v8a")
				a.SignerDigest = "d1"
				b := abiSplit("com.example.app", "arm64-v8a")
				b.Path = "/elsewhere/split_config.arm64-v8a.apk"
				b.SignerDigest = "d2"
				return InstallationUnit{Base: base("com.example.app"), Splits: []ApkFile{a, b}}
			}(),
			options: DeviceInstallOptions{VerifySignature: true},
			errPart: "signer proxy mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.unit, tt.options)

			assert.Equal(t, tt.valid, result.Valid)
			if tt.valid {
				assert.Empty(t, result.Errors)
				assert.NotEmpty(t, result.OrderedApks)
				return
			}
			// Checks short-circuit: an invalid unit reports exactly the first
			// failure and no install order.
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.errPart)
			assert.Empty(t, result.OrderedApks)
		})
	}
}

func TestInstallOrder(t *testing.T) {
	unit := InstallationUnit{
		Base: base("com.example.app"),
		Splits: []ApkFile{
			localeSplit("com.example.app", "zh"),
			densitySplit("com.example.app", "xhdpi"),
			abiSplit("com.example.app", "x86_64"),
			abiSplit("com.example.app", "arm64-v8a"),
			localeSplit("com.example.app", "en"),
			{
				PackageName: "com.example.app",
				Path:        "/apks/com.example.app/split_feature_maps.apk",
				Class:       ClassFeature,
				SplitName:   "feature_maps",
				VersionCode: 100,
			},
		},
	}

	ordered := InstallOrder(unit)
	require.Len(t, ordered, 7)

	assert.True(t, ordered[0].IsBase, "base must come first")
	assert.Equal(t, "arm64-v8a", ordered[1].ABI)
	assert.Equal(t, "x86_64", ordered[2].ABI)
	assert.Equal(t, "xhdpi", ordered[3].Density)
	assert.Equal(t, "en", ordered[4].Locale)
	assert.Equal(t, "zh", ordered[5].Locale)
	assert.Equal(t, ClassFeature, ordered[6].Class)
}

func TestInstallOrderDeterministic(t *testing.T) {
	unit := InstallationUnit{
		Base: base("com.example.app"),
		Splits: []ApkFile{
			abiSplit("com.example.app", "x86"),
			densitySplit("com.example.app", "hdpi"),
			abiSplit("com.example.app", "arm64-v8a"),
		},
	}

	first := InstallOrder(unit)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, InstallOrder(unit))
	}
}
