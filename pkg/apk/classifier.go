package apk

import (
	"path/filepath"

	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
)

// Classification is the split identity assigned to one APK file.
type Classification struct {
	Class   deploy.SplitClass
	ABI     string
	Density string
	Locale  string
}

// Classify decides whether an APK is a base or a split and, for splits, which
// discriminator it carries. Classification is pure: the same name and manifest
// always produce the same result.
//
// A file whose manifest carries no split marker is a base. For splits, the
// split name (or the file name when the manifest gave none) is scanned
// against the ABI, density and locale vocabularies in that order; the first
// vocabulary with a match wins, and a split matching none of them is a
// dynamic-feature split.
func Classify(fileName string, m *Manifest) Classification {
	if m == nil || !m.IsSplit {
		return Classification{Class: deploy.ClassBase}
	}

	name := m.SplitName
	if name == "" {
		name = filepath.Base(fileName)
	}

	if abi := findVocab(name, abiVocabulary); abi != "" {
		return Classification{Class: deploy.ClassAbi, ABI: abi}
	}
	if density := findVocab(name, densityVocabulary); density != "" {
		return Classification{Class: deploy.ClassDensity, Density: density}
	}
	if locale := findLocale(name); locale != "" {
		return Classification{Class: deploy.ClassLocale, Locale: locale}
	}

	return Classification{Class: deploy.ClassFeature}
}
