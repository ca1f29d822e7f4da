package apk

// Manifest is the metadata one parser pass recovers from a single APK file.
// Fields left zero by one parser can be filled in by a later, cheaper source
// (another parser or the filename).
type Manifest struct {
	Package        string
	Label          string
	VersionCode    int64
	VersionName    string
	MinSDK         int
	TargetSDK      int
	IsSplit        bool
	SplitName      string
	NativeCode     []string
	Densities      []string
	Locales        []string
	RequiredSplits []string
}

// merge fills m's zero fields from other without overwriting anything a
// higher-priority parser already set.
func (m *Manifest) merge(other *Manifest) {
	if other == nil {
		return
	}
	if m.Package == "" {
		m.Package = other.Package
	}
	if m.Label == "" {
		m.Label = other.Label
	}
	if m.VersionCode == 0 {
		m.VersionCode = other.VersionCode
	}
	if m.VersionName == "" {
		m.VersionName = other.VersionName
	}
	if m.MinSDK == 0 {
		m.MinSDK = other.MinSDK
	}
	if m.TargetSDK == 0 {
		m.TargetSDK = other.TargetSDK
	}
	if !m.IsSplit && other.IsSplit {
		m.IsSplit = true
	}
	if m.SplitName == "" {
		m.SplitName = other.SplitName
	}
	if len(m.NativeCode) == 0 {
		m.NativeCode = other.NativeCode
	}
	if len(m.Densities) == 0 {
		m.Densities = other.Densities
	}
	if len(m.Locales) == 0 {
		m.Locales = other.Locales
	}
	if len(m.RequiredSplits) == 0 {
		m.RequiredSplits = other.RequiredSplits
	}
}
