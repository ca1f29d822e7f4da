package apk

import (
	"archive/zip"
	"sort"
	"strings"

	"github.com/shogo82148/androidbinary/apk"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

// BinaryParser reads the binary AndroidManifest.xml in-process via the
// androidbinary library. It needs no external tooling but cannot see split
// identity, so callers layer filename inference on top for split files.
type BinaryParser struct{}

// NewBinaryParser creates an androidbinary-backed parser.
func NewBinaryParser() *BinaryParser {
	return &BinaryParser{}
}

// Parse reads package identity, versions and SDK levels from the APK's binary
// manifest, plus native ABIs from the lib/ tree.
func (p *BinaryParser) Parse(apkPath string) (*Manifest, error) {
	pkg, err := apk.OpenFile(apkPath)
	if err != nil {
		return nil, errors.NewExtractionError("BINARY_MANIFEST",
			"cannot read binary manifest: "+err.Error())
	}
	defer pkg.Close()

	manifest := pkg.Manifest()

	m := &Manifest{
		Package:     manifest.Package.MustString(),
		VersionCode: int64(manifest.VersionCode.MustInt32()),
		NativeCode:  nativeABIs(apkPath),
	}
	if v, err := manifest.VersionName.String(); err == nil {
		m.VersionName = v
	}
	if sdk, err := manifest.SDK.Min.Int32(); err == nil {
		m.MinSDK = int(sdk)
	}
	if sdk, err := manifest.SDK.Target.Int32(); err == nil {
		m.TargetSDK = int(sdk)
	}
	if label, err := manifest.App.Label.String(); err == nil {
		m.Label = label
	}

	if m.Package == "" {
		return nil, errors.NewExtractionError("BINARY_MANIFEST",
			"no package name in binary manifest")
	}
	return m, nil
}

// nativeABIs lists the ABIs present under lib/ in the APK archive.
func nativeABIs(apkPath string) []string {
	reader, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil
	}
	defer reader.Close()

	seen := make(map[string]bool)
	for _, file := range reader.File {
		if !strings.HasPrefix(file.Name, "lib/") {
			continue
		}
		parts := strings.Split(file.Name, "/")
		if len(parts) >= 3 {
			seen[parts[1]] = true
		}
	}

	abis := make([]string, 0, len(seen))
	for abi := range seen {
		abis = append(abis, abi)
	}
	sort.Strings(abis)
	return abis
}
