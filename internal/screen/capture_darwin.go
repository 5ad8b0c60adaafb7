//go:build darwin

package screen

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Iron-Ham/signal-setup/internal/backend"
)

// MacCapturer shells out to screencapture(1).
type MacCapturer struct {
	runner      backend.Runner
	maxDisplays int
}

// NewPlatformCapturer returns the capturer for this host.
func NewPlatformCapturer(runner backend.Runner, maxDisplays int) Capturer {
	if runner == nil {
		runner = backend.NewExecRunner()
	}
	return &MacCapturer{runner: runner, maxDisplays: maxDisplays}
}

// Displays implements Capturer. Enumeration failures fall back to a single
// display.
func (c *MacCapturer) Displays(ctx context.Context) ([]Display, error) {
	out, err := c.runner.Run(ctx, backend.Command{Name: "system_profiler", Args: []string{"SPDisplaysDataType"}})
	n := 1
	if err == nil && out.ExitCode == 0 {
		n = CountDisplays(out.Stdout, c.maxDisplays)
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	displays := make([]Display, n)
	for i := range displays {
		displays[i] = Display{Index: i + 1}
	}
	return displays, nil
}

// Capture implements Capturer.
func (c *MacCapturer) Capture(ctx context.Context, d Display) (image.Image, error) {
	dir, err := os.MkdirTemp("", "signal-setup-capture-")
	if err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, fmt.Sprintf("display-%d.png", d.Index))
	out, err := c.runner.Run(ctx, backend.Command{
		Name: "screencapture",
		Args: []string{"-x", "-D", strconv.Itoa(d.Index), path},
	})
	if err != nil {
		return nil, fmt.Errorf("screencapture failed: %w", err)
	}
	if out.ExitCode != 0 {
		if IsPermissionFailure(out.Stderr + out.Stdout) {
			return nil, PermissionError(fmt.Errorf("screencapture: %s", backend.SummarizeOutput(out)))
		}
		return nil, fmt.Errorf("screencapture exited with status %d: %s", out.ExitCode, backend.SummarizeOutput(out))
	}

	f, err := os.Open(path)
	if err != nil {
		// screencapture exits 0 without writing a file when permission is missing.
		return nil, PermissionError(err)
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture of %s: %w", d, err)
	}
	return img, nil
}
