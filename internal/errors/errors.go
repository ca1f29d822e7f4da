package errors

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failure for retry and reporting decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindExtraction
	KindInvalidGroup
	KindValidation
	KindIncompatibleSdk
	KindMissingRequiredSplit
	KindSessionCreate
	KindSessionWrite
	KindSessionCommit
	KindDeviceOffline
	KindDeviceUnauthorized
	KindInstallRejected
	KindFile
	KindBridge
	KindConfiguration
	KindCancelled
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindExtraction:
		return "EXTRACTION"
	case KindInvalidGroup:
		return "INVALID_GROUP"
	case KindValidation:
		return "VALIDATION"
	case KindIncompatibleSdk:
		return "INCOMPATIBLE_SDK"
	case KindMissingRequiredSplit:
		return "MISSING_REQUIRED_SPLIT"
	case KindSessionCreate:
		return "SESSION_CREATE"
	case KindSessionWrite:
		return "SESSION_WRITE"
	case KindSessionCommit:
		return "SESSION_COMMIT"
	case KindDeviceOffline:
		return "DEVICE_OFFLINE"
	case KindDeviceUnauthorized:
		return "DEVICE_UNAUTHORIZED"
	case KindInstallRejected:
		return "INSTALL_REJECTED"
	case KindFile:
		return "FILE"
	case KindBridge:
		return "BRIDGE"
	case KindConfiguration:
		return "CONFIGURATION"
	case KindCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// FleetError represents an enhanced error with context and suggestions.
type FleetError struct {
	Kind        Kind              `json:"kind"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Cause       error             `json:"cause,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Retryable   bool              `json:"retryable"`
}

// Error implements the error interface.
func (e *FleetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *FleetError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *FleetError) Is(target error) bool {
	if t, ok := target.(*FleetError); ok {
		return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
	}
	return false
}

// WithContext adds context to the error.
func (e *FleetError) WithContext(key, value string) *FleetError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error.
func (e *FleetError) WithSuggestion(suggestion string) *FleetError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error.
func (e *FleetError) WithSuggestions(suggestions []string) *FleetError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// SetRetryable marks the error as retryable or not.
func (e *FleetError) SetRetryable(retryable bool) *FleetError {
	e.Retryable = retryable
	return e
}

// FormatDetailed returns a detailed error message with context and suggestions.
func (e *FleetError) FormatDetailed() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("%s [%s]: %s\n", e.Kind.String(), e.Code, e.Message))

	if len(e.Context) > 0 {
		builder.WriteString("\nContext:\n")
		for key, value := range e.Context {
			builder.WriteString(fmt.Sprintf("   %s: %s\n", key, value))
		}
	}

	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf("\nUnderlying cause: %v\n", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		builder.WriteString("\nSuggestions:\n")
		for _, suggestion := range e.Suggestions {
			builder.WriteString(fmt.Sprintf("   - %s\n", suggestion))
		}
	}

	if e.Retryable {
		builder.WriteString("\nThis operation can be retried\n")
	}

	return builder.String()
}

// New creates a new FleetError.
func New(kind Kind, code, message string) *FleetError {
	return &FleetError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
	}
}

// Wrap wraps an existing error with a FleetError.
func Wrap(err error, kind Kind, code, message string) *FleetError {
	return &FleetError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
	}
}

// KindOf returns the kind of err, walking the wrap chain.
// Non-FleetError values report KindUnknown.
func KindOf(err error) Kind {
	for err != nil {
		if fe, ok := err.(*FleetError); ok {
			return fe.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth another install attempt.
// Local file and validation problems always fail fast.
func IsRetryable(err error) bool {
	for e := err; e != nil; {
		if fe, ok := e.(*FleetError); ok {
			switch fe.Kind {
			case KindFile, KindValidation, KindInvalidGroup, KindIncompatibleSdk,
				KindMissingRequiredSplit, KindCancelled, KindConfiguration:
				return false
			}
			return fe.Retryable
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}

// Common error constructors

// NewExtractionError creates a manifest extraction error.
func NewExtractionError(code, message string) *FleetError {
	return New(KindExtraction, code, message).
		WithSuggestion("Install aapt2 or ensure the APK file is not corrupted")
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *FleetError {
	return New(KindValidation, code, message).
		WithSuggestion("Check that the selected files belong to the same build")
}

// NewFileError creates a local file error. Never retryable.
func NewFileError(code, message string) *FleetError {
	return New(KindFile, code, message).
		WithSuggestions([]string{
			"Check that the file exists and is readable",
			"Re-download or re-export the APK",
		})
}

// NewBridgeError creates a device-bridge invocation error.
func NewBridgeError(code, message string) *FleetError {
	return New(KindBridge, code, message).
		SetRetryable(true).
		WithSuggestions([]string{
			"Check that adb is installed and on PATH",
			"Try 'adb kill-server && adb start-server'",
			"Verify the device is connected and authorized",
		})
}

// NewDeviceError creates a device state error for the given connection state.
func NewDeviceError(state, serial string) *FleetError {
	switch state {
	case "unauthorized":
		return New(KindDeviceUnauthorized, "DEVICE_UNAUTHORIZED",
			fmt.Sprintf("device %s is unauthorized", serial)).
			WithSuggestion("Allow USB debugging on the device and accept the host key")
	default:
		return New(KindDeviceOffline, "DEVICE_OFFLINE",
			fmt.Sprintf("device %s is %s", serial, state)).
			WithSuggestion("Reconnect the device and check the USB cable")
	}
}

// NewCancelled creates the cancellation sentinel error.
func NewCancelled() *FleetError {
	return New(KindCancelled, "CANCELLED", "operation cancelled by user")
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(code, message string) *FleetError {
	return New(KindConfiguration, code, message).
		WithSuggestions([]string{
			"Check the configuration file syntax",
			"Run 'apkfleet doctor' to verify the toolchain",
		})
}
