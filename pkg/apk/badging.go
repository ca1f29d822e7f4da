package apk

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

// BadgingParser reads APK metadata via `aapt dump badging`. It is the
// preferred source because it reports split identity and requires-split
// relations that the binary manifest reader cannot see.
type BadgingParser struct {
	aaptPath string
}

// NewBadgingParser creates a badging parser. An empty path means aapt2 from
// PATH, with aapt as fallback.
func NewBadgingParser(path string) *BadgingParser {
	if path == "" {
		path = "aapt2"
	}
	return &BadgingParser{aaptPath: path}
}

// Check probes whether an aapt binary is runnable, falling back from aapt2 to
// the older aapt.
func (p *BadgingParser) Check() error {
	if err := exec.Command(p.aaptPath, "version").Run(); err != nil {
		if err := exec.Command("aapt", "version").Run(); err != nil {
			return fmt.Errorf("aapt2 or aapt not found in PATH")
		}
		p.aaptPath = "aapt"
	}
	return nil
}

var (
	quotedAttrRe = regexp.MustCompile(`([a-zA-Z-]+)='([^']*)'`)
	quotedListRe = regexp.MustCompile(`'([^']*)'`)
)

// Dump parses one APK's badging output into a Manifest.
func (p *BadgingParser) Dump(ctx context.Context, apkPath string) (*Manifest, error) {
	cmd := exec.CommandContext(ctx, p.aaptPath, "dump", "badging", apkPath)
	output, err := cmd.Output()
	if err != nil {
		return nil, errors.NewExtractionError("AAPT_DUMP",
			fmt.Sprintf("aapt dump badging failed for %s: %v", apkPath, err))
	}
	return p.parseBadging(string(output))
}

func (p *BadgingParser) parseBadging(output string) (*Manifest, error) {
	m := &Manifest{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "package:"):
			for _, attr := range quotedAttrRe.FindAllStringSubmatch(line, -1) {
				switch attr[1] {
				case "name":
					m.Package = attr[2]
				case "versionCode":
					if code, err := strconv.ParseInt(attr[2], 10, 64); err == nil {
						m.VersionCode = code
					}
				case "versionName":
					m.VersionName = attr[2]
				case "split":
					m.IsSplit = true
					m.SplitName = attr[2]
				}
			}

		case strings.HasPrefix(line, "split:"):
			if v := firstQuoted(line); v != "" {
				m.IsSplit = true
				m.SplitName = v
			}

		case strings.HasPrefix(line, "sdkVersion:"):
			if sdk, err := strconv.Atoi(firstQuoted(line)); err == nil {
				m.MinSDK = sdk
			}

		case strings.HasPrefix(line, "targetSdkVersion:"):
			if sdk, err := strconv.Atoi(firstQuoted(line)); err == nil {
				m.TargetSDK = sdk
			}

		case strings.HasPrefix(line, "application-label:"):
			m.Label = firstQuoted(line)

		case strings.HasPrefix(line, "native-code:"):
			m.NativeCode = append(m.NativeCode, allQuoted(line)...)

		case strings.HasPrefix(line, "densities:"):
			m.Densities = append(m.Densities, allQuoted(line)...)

		case strings.HasPrefix(line, "locales:"):
			for _, loc := range allQuoted(line) {
				if loc != "--_--" && loc != "" {
					m.Locales = append(m.Locales, loc)
				}
			}

		case strings.HasPrefix(line, "uses-split:"), strings.HasPrefix(line, "requires-split:"):
			if v := firstQuoted(line); v != "" {
				m.RequiredSplits = append(m.RequiredSplits, v)
			}
		}
	}

	if m.Package == "" {
		return nil, errors.NewExtractionError("AAPT_PARSE",
			"no package name in badging output")
	}
	return m, nil
}

func firstQuoted(line string) string {
	if m := quotedListRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

func allQuoted(line string) []string {
	var values []string
	for _, m := range quotedListRe.FindAllStringSubmatch(line, -1) {
		for _, v := range strings.Fields(m[1]) {
			values = append(values, v)
		}
	}
	return values
}
