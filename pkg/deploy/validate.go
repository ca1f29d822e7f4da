package deploy

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks a unit's internal consistency. Checks run in a fixed order
// and short-circuit on the first failure. On success the result carries the
// canonical install order: base, then ABI, density, locale, and feature
// splits, each bucket alphabetical.
func Validate(unit InstallationUnit, options DeviceInstallOptions) ValidationResult {
	files := unit.Files()

	// 1. Unit has at least one file.
	if len(files) == 0 || unit.Base.Path == "" {
		return invalid("unit contains no files")
	}

	// 2. Exactly one base file.
	baseCount := 0
	for _, f := range files {
		if f.IsBase {
			baseCount++
		}
	}
	if baseCount != 1 {
		return invalid(fmt.Sprintf("expected exactly one base APK, found %d", baseCount))
	}

	// 3. All files share the base's package name.
	for _, f := range files {
		if f.PackageName != unit.Base.PackageName {
			return invalid(fmt.Sprintf("package name mismatch: %s has %q, base has %q",
				f.Path, f.PackageName, unit.Base.PackageName))
		}
	}

	// 4. Version homogeneity, when enabled.
	if options.VerifyVersionHomogeneity {
		for _, f := range files {
			if f.VersionCode != unit.Base.VersionCode {
				return invalid(fmt.Sprintf("version code mismatch: %s has %d, base has %d",
					f.Path, f.VersionCode, unit.Base.VersionCode))
			}
		}
	}

	// 5. Signer proxy check, when enabled. This compares a content-hash
	// derived digest across files sharing package+version; it detects
	// corruption, not cross-signing, and is NOT certificate verification.
	if options.VerifySignature {
		proxies := make(map[string]string)
		for _, f := range files {
			if f.SignerDigest == "" {
				continue
			}
			key := fmt.Sprintf("%s:%d:%s", f.PackageName, f.VersionCode, f.DiscriminatorKey())
			if prev, ok := proxies[key]; ok && prev != f.SignerDigest {
				return invalid(fmt.Sprintf("signer proxy mismatch for %s (content-hash check)", key))
			}
			proxies[key] = f.SignerDigest
		}
	}

	// 6. No two splits may resolve to the same discriminator with different
	// content. Equality is by content hash, not path: two paths with
	// identical bytes are the same split.
	seen := make(map[string]string)
	for _, s := range unit.Splits {
		key := s.DiscriminatorKey()
		if prev, ok := seen[key]; ok && prev != s.SHA256 {
			return invalid(fmt.Sprintf("duplicate split %s with different content", key))
		}
		seen[key] = s.SHA256
	}

	return ValidationResult{
		Valid:       true,
		OrderedApks: InstallOrder(unit),
	}
}

func invalid(msg string) ValidationResult {
	return ValidationResult{Errors: []string{msg}}
}

// InstallOrder returns the unit's files in canonical install order. Some
// install protocols are order-sensitive; base-first is the conservative
// convention.
func InstallOrder(unit InstallationUnit) []ApkFile {
	buckets := map[SplitClass][]ApkFile{}
	for _, s := range unit.Splits {
		buckets[s.Class] = append(buckets[s.Class], s)
	}

	sortKey := func(f ApkFile) string {
		switch f.Class {
		case ClassAbi:
			return strings.ToLower(f.ABI)
		case ClassDensity:
			return strings.ToLower(f.Density)
		case ClassLocale:
			return strings.ToLower(f.Locale)
		default:
			return strings.ToLower(f.SplitName)
		}
	}

	ordered := make([]ApkFile, 0, unit.FileCount())
	ordered = append(ordered, unit.Base)

	for _, class := range []SplitClass{ClassAbi, ClassDensity, ClassLocale, ClassFeature} {
		bucket := buckets[class]
		sort.SliceStable(bucket, func(i, j int) bool {
			return sortKey(bucket[i]) < sortKey(bucket[j])
		})
		ordered = append(ordered, bucket...)
	}

	return ordered
}
