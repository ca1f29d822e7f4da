package bridge

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/apkfleet/apkfleet-cli/internal/errors"
)

// Bridge speaks the device-bridge command protocol.
type Bridge struct {
	runner Runner
}

// New creates a Bridge shelling out to the adb executable at path.
func New(path string) *Bridge {
	return &Bridge{runner: NewExecRunner(path)}
}

// NewWithRunner creates a Bridge over a custom runner (used by tests).
func NewWithRunner(r Runner) *Bridge {
	return &Bridge{runner: r}
}

// Device is one row of `devices -l`.
type Device struct {
	Serial     string `json:"serial"`
	State      string `json:"state"`
	Model      string `json:"model,omitempty"`
	Product    string `json:"product,omitempty"`
	IsEmulator bool   `json:"is_emulator"`
}

// Devices lists connected devices.
func (b *Bridge) Devices(ctx context.Context) ([]Device, error) {
	output, err := b.runner.Run(ctx, "devices", "-l")
	if err != nil {
		return nil, errors.NewBridgeError("DEVICE_LIST",
			fmt.Sprintf("failed to list devices: %v", err))
	}

	var devices []Device
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || i == 0 { // skip header
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		device := Device{
			Serial: parts[0],
			State:  parts[1],
		}
		device.IsEmulator = strings.HasPrefix(device.Serial, "emulator-")

		for _, part := range parts[2:] {
			if strings.HasPrefix(part, "model:") {
				device.Model = strings.TrimPrefix(part, "model:")
			} else if strings.HasPrefix(part, "product:") {
				device.Product = strings.TrimPrefix(part, "product:")
			}
		}

		devices = append(devices, device)
	}

	return devices, nil
}

var getpropRe = regexp.MustCompile(`^\[([^\]]+)\]:\s*\[([^\]]*)\]`)

// Properties dumps all system properties of a device as a map.
func (b *Bridge) Properties(ctx context.Context, serial string) (map[string]string, error) {
	output, err := b.runner.Run(ctx, "-s", serial, "shell", "getprop")
	if err != nil {
		return nil, errors.NewBridgeError("GETPROP",
			fmt.Sprintf("getprop failed for %s: %v", serial, err))
	}

	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		if m := getpropRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			props[m[1]] = m[2]
		}
	}

	return props, nil
}

// InstalledPackage is one row of the package list.
type InstalledPackage struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ListPackages lists installed packages, falling back from `cmd package` to
// the legacy `pm` form when the output is empty.
func (b *Bridge) ListPackages(ctx context.Context, serial string, userID int) ([]InstalledPackage, error) {
	args := []string{"-s", serial, "shell", "cmd", "package", "list", "packages", "-f"}
	if userID >= 0 {
		args = append(args, "--user", strconv.Itoa(userID))
	}

	output, err := b.runner.Run(ctx, args...)
	if err != nil || strings.TrimSpace(output) == "" {
		output, err = b.runner.Run(ctx, "-s", serial, "shell", "pm", "list", "packages", "-f")
		if err != nil {
			return nil, errors.NewBridgeError("PACKAGE_LIST",
				fmt.Sprintf("package list failed for %s: %v", serial, err))
		}
	}

	var packages []InstalledPackage
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "package:") {
			continue
		}
		entry := strings.TrimPrefix(line, "package:")
		// Format: <path>=<name>; the path itself may contain '='.
		idx := strings.LastIndex(entry, "=")
		if idx <= 0 {
			continue
		}
		packages = append(packages, InstalledPackage{
			Path: entry[:idx],
			Name: entry[idx+1:],
		})
	}

	return packages, nil
}

// PackageDetail is the dumpsys view of one installed package.
type PackageDetail struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	VersionName string `json:"version_name,omitempty"`
	VersionCode int64  `json:"version_code"`
}

// PackageInfo fetches label and version details for an installed package.
func (b *Bridge) PackageInfo(ctx context.Context, serial, pkg string) (*PackageDetail, error) {
	output, err := b.runner.Run(ctx, "-s", serial, "shell", "dumpsys", "package", pkg)
	if err != nil {
		return nil, errors.NewBridgeError("DUMPSYS",
			fmt.Sprintf("dumpsys package failed for %s: %v", pkg, err))
	}

	detail := &PackageDetail{Name: pkg}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "applicationLabel="):
			detail.Label = strings.TrimPrefix(line, "applicationLabel=")
		case strings.HasPrefix(line, "versionName="):
			detail.VersionName = strings.TrimPrefix(line, "versionName=")
		case strings.HasPrefix(line, "versionCode="):
			fields := strings.Fields(strings.TrimPrefix(line, "versionCode="))
			if len(fields) > 0 {
				if code, perr := strconv.ParseInt(fields[0], 10, 64); perr == nil && detail.VersionCode == 0 {
					detail.VersionCode = code
				}
			}
		}
	}

	if detail.Label == "" && detail.VersionName == "" && detail.VersionCode == 0 {
		return nil, errors.New(errors.KindUnknown, "PACKAGE_NOT_FOUND",
			fmt.Sprintf("package %s not found on %s", pkg, serial))
	}

	return detail, nil
}

// InstallSingle installs one APK with the atomic `install` command.
func (b *Bridge) InstallSingle(ctx context.Context, serial string, flags []string, path string) error {
	args := []string{"-s", serial, "install"}
	args = append(args, flags...)
	args = append(args, path)

	output, err := b.runner.Run(ctx, args...)
	if outputSucceeded(output) {
		return nil
	}
	return classifyInstallOutput(output, err)
}

// InstallMultiple installs a base plus splits atomically with
// `install-multiple`. No mid-command progress is possible here; large units
// should use the session protocol instead.
func (b *Bridge) InstallMultiple(ctx context.Context, serial string, flags []string, paths []string) error {
	args := []string{"-s", serial, "install-multiple"}
	args = append(args, flags...)
	args = append(args, paths...)

	output, err := b.runner.Run(ctx, args...)
	if outputSucceeded(output) {
		return nil
	}
	return classifyInstallOutput(output, err)
}

var sessionIDRe = regexp.MustCompile(`session \[(\d+)\]`)

// CreateSession starts an install session and returns its identifier.
func (b *Bridge) CreateSession(ctx context.Context, serial string, flags []string) (int, error) {
	args := []string{"-s", serial, "shell", "pm", "install-create"}
	args = append(args, flags...)

	output, err := b.runner.Run(ctx, args...)
	if err != nil {
		return 0, errors.New(errors.KindSessionCreate, "SESSION_CREATE_FAILED",
			fmt.Sprintf("install-create failed: %v", err)).
			SetRetryable(true).
			WithContext("output", firstLines(output, 4))
	}

	m := sessionIDRe.FindStringSubmatch(output)
	if m == nil {
		return 0, errors.New(errors.KindSessionCreate, "SESSION_CREATE_FAILED",
			"no session id in install-create output").
			SetRetryable(true).
			WithContext("output", firstLines(output, 4))
	}

	id, _ := strconv.Atoi(m[1])
	return id, nil
}

// WriteSession streams one file's bytes into the session. The exact byte size
// is declared up front with -S; the payload goes over stdin.
func (b *Bridge) WriteSession(ctx context.Context, serial string, sessionID int, name string, size int64, payload io.Reader) error {
	args := []string{
		"-s", serial, "shell", "pm", "install-write",
		"-S", strconv.FormatInt(size, 10),
		strconv.Itoa(sessionID), name, "-",
	}

	output, err := b.runner.RunInput(ctx, payload, args...)
	if err != nil {
		return errors.New(errors.KindSessionWrite, "SESSION_WRITE_FAILED",
			fmt.Sprintf("install-write of %s failed: %v", name, err)).
			SetRetryable(true).
			WithContext("output", firstLines(output, 4))
	}
	return nil
}

// CommitSession finalizes the session. A failure marker in the output means
// the install was rejected even on exit 0.
func (b *Bridge) CommitSession(ctx context.Context, serial string, sessionID int) error {
	output, err := b.runner.Run(ctx, "-s", serial, "shell", "pm", "install-commit",
		strconv.Itoa(sessionID))

	if marker := installFailureRe.FindString(output); marker != "" || err != nil {
		if cerr := classifyInstallOutput(output, err); cerr != nil {
			return errors.Wrap(cerr, errors.KindSessionCommit, "SESSION_COMMIT_FAILED",
				fmt.Sprintf("install-commit of session %d failed", sessionID)).
				SetRetryable(errors.IsRetryable(cerr))
		}
	}
	return nil
}

// AbandonSession discards the session. Best-effort: callers swallow errors,
// this exists for resource cleanup only.
func (b *Bridge) AbandonSession(ctx context.Context, serial string, sessionID int) error {
	_, err := b.runner.Run(ctx, "-s", serial, "shell", "pm", "install-abandon",
		strconv.Itoa(sessionID))
	return err
}

// Uninstall removes a package from the device.
func (b *Bridge) Uninstall(ctx context.Context, serial, pkg string) error {
	output, err := b.runner.Run(ctx, "-s", serial, "uninstall", pkg)
	if err != nil {
		return errors.NewBridgeError("UNINSTALL",
			fmt.Sprintf("uninstall of %s failed: %v", pkg, err))
	}
	if !strings.Contains(output, "Success") {
		return errors.NewBridgeError("UNINSTALL",
			fmt.Sprintf("uninstall of %s failed: %s", pkg, firstLines(output, 2)))
	}
	return nil
}
