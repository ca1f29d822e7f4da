package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base(pkg string) ApkFile {
	return ApkFile{
		Path:        "/apks/" + pkg + "/base.apk",
		PackageName: pkg,
		IsBase:      true,
		Class:       ClassBase,
		VersionCode: 100,
	}
}

func abiSplit(pkg, abi string) ApkFile {
	return ApkFile{
		Path:        "/apks/" + pkg + "/split_config." + abi + ".apk",
		PackageName: pkg,
		Class:       ClassAbi,
		ABI:         abi,
		SplitName:   "config." + abi,
		VersionCode: 100,
	}
}

func densitySplit(pkg, density string) ApkFile {
	return ApkFile{
		Path:        "/apks/" + pkg + "/split_config." + density + ".apk",
		PackageName: pkg,
		Class:       ClassDensity,
		Density:     density,
		SplitName:   "config." + density,
		VersionCode: 100,
	}
}

func localeSplit(pkg, locale string) ApkFile {
	return ApkFile{
		Path:        "/apks/" + pkg + "/split_config." + locale + ".apk",
		PackageName: pkg,
		Class:       ClassLocale,
		Locale:      locale,
		SplitName:   "config." + locale,
		VersionCode: 100,
	}
}

func TestBuildUnits(t *testing.T) {
	tests := []struct {
		name          string
		files         []ApkFile
		wantUnits     int
		wantWarnings  int
		wantPackages  []string
		wantSplitters map[string]int
	}{
		{
			name:         "single base",
			files:        []ApkFile{base("com.example.app")},
			wantUnits:    1,
			wantPackages: []string{"com.example.app"},
		},
		{
			name: "base with splits",
			files: []ApkFile{
				base("com.example.app"),
				abiSplit("com.example.app", "arm64-v8a"),
				densitySplit("com.example.app", "xhdpi"),
			},
			wantUnits:     1,
			wantPackages:  []string{"com.example.app"},
			wantSplitters: map[string]int{"com.example.app": 2},
		},
		{
			name: "two packages keep input order",
			files: []ApkFile{
				base("com.b.app"),
				base("com.a.app"),
				abiSplit("com.b.app", "x86_64"),
			},
			wantUnits:    2,
			wantPackages: []string{"com.b.app", "com.a.app"},
		},
		{
			name: "splits without base are dropped",
			files: []ApkFile{
				abiSplit("com.example.app", "arm64-v8a"),
				densitySplit("com.example.app", "xhdpi"),
			},
			wantUnits:    0,
			wantWarnings: 1,
		},
		{
			name: "duplicate base is dropped",
			files: []ApkFile{
				base("com.example.app"),
				base("com.example.app"),
			},
			wantUnits:    0,
			wantWarnings: 1,
		},
		{
			name:  "empty input",
			files: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, warnings := BuildUnits(tt.files)

			assert.Len(t, units, tt.wantUnits)
			assert.Len(t, warnings, tt.wantWarnings)

			for i, pkg := range tt.wantPackages {
				assert.Equal(t, pkg, units[i].PackageName())
			}
			for pkg, count := range tt.wantSplitters {
				for _, u := range units {
					if u.PackageName() == pkg {
						assert.Len(t, u.Splits, count)
					}
				}
			}
		})
	}
}

func TestBuildUnitsSingleSplitBecomesBase(t *testing.T) {
	split := abiSplit("com.example.app", "arm64-v8a")
	units, warnings := BuildUnits([]ApkFile{split})

	require.Len(t, units, 1)
	assert.Empty(t, warnings)
	assert.True(t, units[0].Base.IsBase)
	assert.Equal(t, ClassBase, units[0].Base.Class)
	assert.Empty(t, units[0].Splits)
}

func TestBuildUnitsEveryFileLandsSomewhere(t *testing.T) {
	// Every input file ends up either in a unit or covered by a warning.
	files := []ApkFile{
		base("com.one"),
		abiSplit("com.one", "arm64-v8a"),
		abiSplit("com.orphan", "x86"),
		densitySplit("com.orphan", "hdpi"),
		base("com.two"),
	}

	units, warnings := BuildUnits(files)

	placed := 0
	for _, u := range units {
		placed += u.FileCount()
	}

	warned := make(map[string]bool)
	for _, w := range warnings {
		warned[w.PackageName] = true
	}
	for _, f := range files {
		if !warned[f.PackageName] {
			continue
		}
		placed++
	}

	assert.Equal(t, len(files), placed)
}
