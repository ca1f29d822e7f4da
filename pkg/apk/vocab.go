package apk

import (
	"regexp"
	"strings"
)

// Known split discriminator vocabularies. Scan order is ABI, then density,
// then locale; a name carrying several tokens (e.g. an ABI and a density tag)
// classifies by the first vocabulary that matches.
var (
	abiVocabulary = []string{
		"arm64-v8a", "armeabi-v7a", "armeabi", "x86", "x86_64", "mips", "mips64",
	}

	densityVocabulary = []string{
		"ldpi", "mdpi", "hdpi", "xhdpi", "xxhdpi", "xxxhdpi", "nodpi", "tvdpi",
	}

	localeVocabulary = []string{
		"en", "fr", "de", "es", "it", "pt", "ru", "zh", "ja", "ko",
		"ar", "hi", "tr", "nl", "pl", "th", "vi", "id", "sv", "da",
		"fi", "nb", "cs", "el", "he", "hu", "ro", "sk", "uk", "ms",
		"bn", "fa", "sr", "bg", "hr", "ca", "lt", "lv", "et", "sl",
	}
)

var segmentRe = regexp.MustCompile(`[a-z0-9]+`)

// segments tokenizes a split or file name: lowercase alphanumeric runs, with
// dash/underscore/dot all acting as separators.
func segments(name string) []string {
	return segmentRe.FindAllString(strings.ToLower(name), -1)
}

// findVocab returns the vocabulary entry appearing as consecutive segments in
// name. Among overlapping candidates the longest entry wins, so x86_64 is
// never read as x86 and armeabi-v7a never as armeabi.
func findVocab(name string, vocab []string) string {
	segs := segments(name)
	if len(segs) == 0 {
		return ""
	}

	best := ""
	bestLen := 0
	for _, entry := range vocab {
		want := segments(entry)
		if matchesConsecutive(segs, want) && len(want) > bestLen {
			best = entry
			bestLen = len(want)
		}
	}
	return best
}

func matchesConsecutive(segs, want []string) bool {
	if len(want) == 0 || len(want) > len(segs) {
		return false
	}
outer:
	for i := 0; i+len(want) <= len(segs); i++ {
		for j, w := range want {
			if segs[i+j] != w {
				continue outer
			}
		}
		// Reject matches that are a strict prefix of a longer run, e.g. the
		// "x86" in "x86 64" when "x86_64" is also in the vocabulary.
		return true
	}
	return false
}

// findLocale matches bare language codes only when they stand alone as a
// segment, optionally followed by an r-prefixed region (config.zh_rCN).
func findLocale(name string) string {
	segs := segments(name)
	for i, s := range segs {
		for _, code := range localeVocabulary {
			if s != code {
				continue
			}
			if i+1 < len(segs) && strings.HasPrefix(segs[i+1], "r") && len(segs[i+1]) == 3 {
				return code + "-" + strings.ToUpper(strings.TrimPrefix(segs[i+1], "r"))
			}
			return code
		}
	}
	return ""
}
