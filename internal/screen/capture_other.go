//go:build !darwin

package screen

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/Iron-Ham/signal-setup/internal/backend"
)

// NativeCapturer captures displays through the platform's native API.
type NativeCapturer struct {
	maxDisplays int
}

// NewPlatformCapturer returns the capturer for this host. runner is unused
// outside macOS.
func NewPlatformCapturer(_ backend.Runner, maxDisplays int) Capturer {
	return &NativeCapturer{maxDisplays: maxDisplays}
}

// Displays implements Capturer.
func (c *NativeCapturer) Displays(ctx context.Context) ([]Display, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, PermissionError(fmt.Errorf("no displays reported by the window system"))
	}
	n = clampDisplays(n, c.maxDisplays)

	displays := make([]Display, n)
	for i := range displays {
		b := screenshot.GetDisplayBounds(i)
		displays[i] = Display{Index: i, Name: fmt.Sprintf("display %d (%dx%d)", i, b.Dx(), b.Dy())}
	}
	return displays, nil
}

type captureResult struct {
	img *image.RGBA
	err error
}

// Capture implements Capturer. The native call cannot be interrupted, so it
// runs in its own goroutine and is abandoned on cancellation.
func (c *NativeCapturer) Capture(ctx context.Context, d Display) (image.Image, error) {
	done := make(chan captureResult, 1)
	go func() {
		img, err := screenshot.CaptureDisplay(d.Index)
		done <- captureResult{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if IsPermissionFailure(r.err.Error()) {
				return nil, PermissionError(r.err)
			}
			return nil, fmt.Errorf("failed to capture %s: %w", d, r.err)
		}
		return r.img, nil
	}
}
