package bridge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

func TestOutputSucceeded(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"plain success", "Success\n", true},
		{"success with noise", "Performing Streamed Install\nSuccess\n", true},
		{"no marker", "all done\n", false},
		{"failure marker wins over success text", "Success\nINSTALL_FAILED_INVALID_APK", false},
		{"failure only", "Failure [INSTALL_FAILED_OLDER_SDK]", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outputSucceeded(tt.output))
		})
	}
}

func TestClassifyInstallOutput(t *testing.T) {
	t.Run("known rejection maps to install-rejected kind", func(t *testing.T) {
		err := classifyInstallOutput("Failure [INSTALL_FAILED_VERSION_DOWNGRADE]", nil)
		require.Error(t, err)

		assert.Equal(t, errors.KindInstallRejected, errors.KindOf(err))
		assert.False(t, errors.IsRetryable(err))

		var ferr *errors.FleetError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, "INSTALL_FAILED_VERSION_DOWNGRADE", ferr.Code)
	})

	t.Run("insufficient storage is the only retryable rejection", func(t *testing.T) {
		for marker, rej := range knownRejections {
			err := classifyInstallOutput(fmt.Sprintf("Failure [%s]", marker), nil)
			require.Error(t, err, marker)
			assert.Equal(t, rej.retryable, errors.IsRetryable(err), marker)
		}

		err := classifyInstallOutput("Failure [INSTALL_FAILED_INSUFFICIENT_STORAGE]", nil)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("unknown marker still classifies as rejection", func(t *testing.T) {
		err := classifyInstallOutput("Failure [INSTALL_FAILED_SOMETHING_NEW]", nil)
		require.Error(t, err)
		assert.Equal(t, errors.KindInstallRejected, errors.KindOf(err))
		assert.False(t, errors.IsRetryable(err))
	})

	t.Run("parse failure marker is recognized", func(t *testing.T) {
		err := classifyInstallOutput("Failure [INSTALL_PARSE_FAILED_NOT_APK]", nil)
		require.Error(t, err)
		assert.Equal(t, errors.KindInstallRejected, errors.KindOf(err))
	})

	t.Run("command error without marker is a bridge error", func(t *testing.T) {
		err := classifyInstallOutput("", fmt.Errorf("exit status 1"))
		require.Error(t, err)
		assert.Equal(t, errors.KindBridge, errors.KindOf(err))
		assert.True(t, errors.IsRetryable(err), "transport-level failures are retryable")
	})

	t.Run("exit 0 without success marker is suspicious", func(t *testing.T) {
		err := classifyInstallOutput("something odd", nil)
		require.Error(t, err)
		assert.Equal(t, errors.KindBridge, errors.KindOf(err))
	})

	t.Run("clean success", func(t *testing.T) {
		assert.NoError(t, classifyInstallOutput("Success", nil))
	})
}

func TestFirstLines(t *testing.T) {
	assert.Equal(t, "a\nb", firstLines("a\nb\nc\nd", 2))
	assert.Equal(t, "a", firstLines("a", 4))
	assert.Equal(t, "", firstLines("", 4))
}
