package apk

import (
	"path/filepath"
	"regexp"
	"strings"
)

var packagePrefixRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+`)

// InferFromFilename recovers what metadata it can from the file name alone.
// Last-resort source: it never fails, but everything it reports is a guess.
//
// Recognized shapes include "com.example.app.apk", "com.example.app-1.2.3.apk",
// "split_config.arm64_v8a.apk" and "com.example.app.config.xhdpi.apk".
func InferFromFilename(path string) *Manifest {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := &Manifest{}

	if marker := splitMarker(name); marker != "" {
		m.IsSplit = true
		m.SplitName = marker
	}

	// A leading reverse-DNS run is taken as the package name, after cutting
	// off any config marker so "config.xhdpi" is never part of the package.
	pkgPart := name
	if idx := strings.Index(strings.ToLower(name), "config."); idx >= 0 {
		pkgPart = name[:idx]
	}
	pkgPart = strings.TrimRight(pkgPart, "._-")

	if strings.HasPrefix(strings.ToLower(pkgPart), "split") {
		return m
	}
	if pkg := packagePrefixRe.FindString(pkgPart); strings.Count(pkg, ".") >= 1 {
		m.Package = pkg
	}

	return m
}

// splitMarker extracts the config-style split name from a file name, e.g.
// "config.arm64_v8a" from "split_config.arm64_v8a". Empty means the name
// carries no split marker.
func splitMarker(name string) string {
	lower := strings.ToLower(name)

	if idx := strings.Index(lower, "config."); idx >= 0 {
		return lower[idx:]
	}
	if rest, ok := strings.CutPrefix(lower, "split_"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(lower, "split."); ok {
		return rest
	}
	return ""
}
