package backend

import (
	"regexp"
	"strings"

	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// unreachableMarkers identify a container runtime whose daemon is down.
var unreachableMarkers = []string{
	"Cannot connect to the Docker daemon",
	"Is the docker daemon running",
	"error during connect",
	"docker daemon is not running",
}

// transientMarkers identify a temporary upstream failure worth retrying.
var transientMarkers = []string{
	"ExternalServiceFailureException",
	"RateLimit",
	"StatusCode: 429",
	"Connection reset",
	"timed out",
}

var serverErrorPattern = regexp.MustCompile(`StatusCode: 5\d\d`)

// Classify maps the output of a failed invocation to a FailureClass. Only
// called for non-zero exits.
func Classify(out Output) errors.FailureClass {
	combined := out.Stderr + "\n" + out.Stdout

	for _, marker := range unreachableMarkers {
		if strings.Contains(combined, marker) {
			return errors.ClassUnreachable
		}
	}
	if serverErrorPattern.MatchString(combined) {
		return errors.ClassTransient
	}
	for _, marker := range transientMarkers {
		if strings.Contains(combined, marker) {
			return errors.ClassTransient
		}
	}
	return errors.ClassRejected
}

// SummarizeOutput returns the most meaningful line of a failed invocation:
// the first line carrying a known failure marker, otherwise the last
// non-empty stderr line, otherwise the last non-empty stdout line.
func SummarizeOutput(out Output) string {
	lines := nonEmptyLines(out.Stderr)
	stdoutLines := nonEmptyLines(out.Stdout)

	for _, line := range append(lines, stdoutLines...) {
		if serverErrorPattern.MatchString(line) || containsAny(line, transientMarkers) || containsAny(line, unreachableMarkers) {
			return line
		}
	}
	if len(lines) > 0 {
		return lines[len(lines)-1]
	}
	if len(stdoutLines) > 0 {
		return stdoutLines[len(stdoutLines)-1]
	}
	return ""
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
