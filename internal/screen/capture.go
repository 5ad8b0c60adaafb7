package screen

import (
	"strings"

	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// ScreenRecordingSettingsURL opens the macOS Screen Recording privacy pane.
const ScreenRecordingSettingsURL = "x-apple.systempreferences:com.apple.preference.security?Privacy_ScreenCapture"

// DefaultMaxDisplays caps display enumeration.
const DefaultMaxDisplays = 6

var permissionMarkers = []string{
	"could not create image from display",
	"not authorized",
	"screen recording",
}

// IsPermissionFailure reports whether capture tool output indicates the
// host refused screen capture.
func IsPermissionFailure(output string) bool {
	lower := strings.ToLower(output)
	for _, m := range permissionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// PermissionError is returned when capture is refused by the host.
func PermissionError(cause error) error {
	return errors.NewPreconditionError(
		"screen capture is not permitted for this terminal",
		"Grant Screen Recording permission in System Settings > Privacy & Security, then restart the terminal",
		errors.Join(errors.ErrCapturePermission, cause),
	)
}

// CountDisplays counts the "Resolution:" entries in system_profiler
// SPDisplaysDataType output, clamped to [1, maxDisplays].
func CountDisplays(profilerOutput string, maxDisplays int) int {
	n := 0
	for _, line := range strings.Split(profilerOutput, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Resolution:") {
			n++
		}
	}
	return clampDisplays(n, maxDisplays)
}

func clampDisplays(n, maxDisplays int) int {
	if maxDisplays <= 0 {
		maxDisplays = DefaultMaxDisplays
	}
	return min(max(n, 1), maxDisplays)
}
