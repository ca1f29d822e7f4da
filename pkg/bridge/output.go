package bridge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
	"github.com/apkfleet/apkfleet-cli/internal/i18n"
)

var installFailureRe = regexp.MustCompile(`INSTALL_FAILED_[A-Z_]+|INSTALL_PARSE_FAILED_[A-Z_]+`)

// rejection maps a device-manager failure marker to its remediation message
// and whether another attempt could plausibly succeed.
type rejection struct {
	messageID string
	retryable bool
}

var knownRejections = map[string]rejection{
	"INSTALL_FAILED_ALREADY_EXISTS":         {"install.rejected.already_exists", false},
	"INSTALL_FAILED_VERSION_DOWNGRADE":      {"install.rejected.version_downgrade", false},
	"INSTALL_FAILED_INSUFFICIENT_STORAGE":   {"install.rejected.insufficient_storage", true},
	"INSTALL_FAILED_INVALID_APK":            {"install.rejected.invalid_apk", false},
	"INSTALL_FAILED_NO_MATCHING_ABIS":       {"install.rejected.no_matching_abis", false},
	"INSTALL_FAILED_OLDER_SDK":              {"install.rejected.older_sdk", false},
	"INSTALL_FAILED_MISSING_SPLIT":          {"install.rejected.missing_split", false},
	"INSTALL_FAILED_INCOMPATIBLE_SDK":       {"install.rejected.older_sdk", false},
	"INSTALL_FAILED_PERMISSION_MODEL":       {"install.rejected.permission_model", false},
	"INSTALL_FAILED_MISSING_SHARED_LIBRARY": {"install.rejected.generic", false},
}

// success markers: command-level exit 0 alone is not enough, the output must
// also say Success and carry no failure marker.
func outputSucceeded(output string) bool {
	return strings.Contains(output, "Success") && !installFailureRe.MatchString(output)
}

// classifyInstallOutput translates raw bridge output into the typed taxonomy.
// This is the only place install output strings are sniffed; everything
// downstream branches on the error kind.
func classifyInstallOutput(output string, cmdErr error) error {
	if marker := installFailureRe.FindString(output); marker != "" {
		rej, known := knownRejections[marker]
		msg := i18n.T("install.rejected.generic", map[string]interface{}{"Code": marker})
		if known {
			msg = i18n.T(rej.messageID)
		}

		return errors.New(errors.KindInstallRejected, marker, msg).
			SetRetryable(known && rej.retryable).
			WithContext("output", firstLines(output, 4))
	}

	if cmdErr != nil {
		return errors.NewBridgeError("BRIDGE_COMMAND",
			fmt.Sprintf("bridge command failed: %v", cmdErr)).
			WithContext("output", firstLines(output, 4))
	}

	if !strings.Contains(output, "Success") {
		return errors.NewBridgeError("NO_SUCCESS_MARKER",
			"install produced no success marker").
			WithContext("output", firstLines(output, 4))
	}

	return nil
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
