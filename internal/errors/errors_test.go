package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(KindBridge, "BRIDGE_COMMAND", "bridge command failed")
	assert.Equal(t, "bridge command failed", plain.Error())

	wrapped := Wrap(fmt.Errorf("exit status 1"), KindBridge, "BRIDGE_COMMAND", "bridge command failed")
	assert.Equal(t, "bridge command failed: exit status 1", wrapped.Error())
	assert.EqualError(t, wrapped.Unwrap(), "exit status 1")
}

func TestErrorIs(t *testing.T) {
	err := New(KindInstallRejected, "INSTALL_FAILED_OLDER_SDK", "too old")

	assert.True(t, stderrors.Is(err, &FleetError{Kind: KindInstallRejected}),
		"kind-only target matches any code")
	assert.True(t, stderrors.Is(err, &FleetError{Kind: KindInstallRejected, Code: "INSTALL_FAILED_OLDER_SDK"}))
	assert.False(t, stderrors.Is(err, &FleetError{Kind: KindInstallRejected, Code: "OTHER"}))
	assert.False(t, stderrors.Is(err, &FleetError{Kind: KindBridge}))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain")))
	assert.Equal(t, KindFile, KindOf(NewFileError("FILE_MISSING", "gone")))

	// The kind survives both fmt and FleetError wrapping.
	wrapped := fmt.Errorf("outer: %w", NewFileError("FILE_MISSING", "gone"))
	assert.Equal(t, KindFile, KindOf(wrapped))

	rewrapped := Wrap(New(KindSessionCommit, "X", "inner"), KindBridge, "Y", "outer")
	assert.Equal(t, KindBridge, KindOf(rewrapped), "the outermost FleetError wins")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", fmt.Errorf("whatever"), false},
		{"bridge errors are retryable", NewBridgeError("BRIDGE_COMMAND", "hiccup"), true},
		{"file errors never retry", NewFileError("FILE_MISSING", "gone"), false},
		{"validation never retries", NewValidationError("VERSION_MISMATCH", "bad"), false},
		{"cancellation never retries", NewCancelled(), false},
		{"configuration never retries", NewConfigurationError("BAD_MODE", "bad"), false},
		{
			name: "incompatible sdk never retries even if marked",
			err:  New(KindIncompatibleSdk, "INCOMPATIBLE_SDK", "old").SetRetryable(true),
			want: false,
		},
		{
			name: "rejection honors the flag",
			err:  New(KindInstallRejected, "INSTALL_FAILED_INSUFFICIENT_STORAGE", "full").SetRetryable(true),
			want: true,
		},
		{
			name: "retryability survives fmt wrapping",
			err:  fmt.Errorf("outer: %w", NewBridgeError("BRIDGE_COMMAND", "hiccup")),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDeviceErrorStates(t *testing.T) {
	unauthorized := NewDeviceError("unauthorized", "serial-1")
	assert.Equal(t, KindDeviceUnauthorized, unauthorized.Kind)

	offline := NewDeviceError("offline", "serial-1")
	assert.Equal(t, KindDeviceOffline, offline.Kind)
	assert.Contains(t, offline.Message, "offline")
}

func TestFormatDetailed(t *testing.T) {
	err := NewBridgeError("BRIDGE_COMMAND", "hiccup").
		WithContext("device", "serial-1")

	detailed := err.FormatDetailed()
	assert.Contains(t, detailed, "BRIDGE [BRIDGE_COMMAND]")
	assert.Contains(t, detailed, "device: serial-1")
	assert.Contains(t, detailed, "Suggestions:")
	assert.Contains(t, detailed, "can be retried")

	require.NotPanics(t, func() {
		_ = New(KindUnknown, "", "bare").FormatDetailed()
	})
}
