// Package screen samples every active display for a desktop-linking QR code.
//
// Capture and decoding are capabilities behind the [Capturer] and [Decoder]
// interfaces; [Sampler] only fans a capture out to each display, bounds it
// and reports the results in display order.
package screen

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
	"github.com/Iron-Ham/signal-setup/internal/logging"
)

// Display identifies one active display. Index is 1-based on macOS and
// 0-based elsewhere, matching the native capture tool.
type Display struct {
	Index int
	Name  string
}

func (d Display) String() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("display %d", d.Index)
}

// Sample is the outcome of inspecting one display once.
type Sample struct {
	Display Display
	Payload account.QrPayload
	Found   bool
	Err     error
}

// Capturer enumerates displays and grabs their contents.
type Capturer interface {
	Displays(ctx context.Context) ([]Display, error)
	Capture(ctx context.Context, d Display) (image.Image, error)
}

// Decoder extracts a link payload from an image. Only payloads carrying the
// link scheme are reported.
type Decoder interface {
	Decode(img image.Image) (account.QrPayload, bool)
}

// DefaultCaptureTimeout bounds capturing and decoding a single display.
const DefaultCaptureTimeout = 12 * time.Second

// Sampler captures and decodes all displays concurrently.
type Sampler struct {
	capturer       Capturer
	decoder        Decoder
	captureTimeout time.Duration
	logger         *logging.Logger
}

// NewSampler creates a Sampler. A zero captureTimeout selects
// DefaultCaptureTimeout.
func NewSampler(capturer Capturer, decoder Decoder, captureTimeout time.Duration, logger *logging.Logger) *Sampler {
	if captureTimeout <= 0 {
		captureTimeout = DefaultCaptureTimeout
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Sampler{
		capturer:       capturer,
		decoder:        decoder,
		captureTimeout: captureTimeout,
		logger:         logger,
	}
}

// SampleAll returns one Sample per active display in enumeration order.
// Per-display failures are reported in Sample.Err; only enumeration failure
// or cancellation is returned as an error.
func (s *Sampler) SampleAll(ctx context.Context) ([]Sample, error) {
	displays, err := s.capturer.Displays(ctx)
	if err != nil {
		return nil, err
	}
	if len(displays) == 0 {
		return nil, errors.NewPreconditionError("no active display found", "Unlock the screen and keep the desktop session active", nil)
	}

	samples := iter.Map(displays, func(d *Display) Sample {
		return s.sample(ctx, *d)
	})

	if err := ctx.Err(); err != nil {
		return samples, err
	}
	return samples, nil
}

func (s *Sampler) sample(ctx context.Context, d Display) Sample {
	captureCtx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	defer cancel()

	img, err := s.capturer.Capture(captureCtx, d)
	if err != nil {
		if ctx.Err() == nil && errors.Is(captureCtx.Err(), context.DeadlineExceeded) {
			err = errors.NewTimeoutError("capture "+d.String(), s.captureTimeout).WithCause(err)
		}
		s.logger.Debug("display capture failed", "display", d.Index, "error", err)
		return Sample{Display: d, Err: err}
	}

	type decoded struct {
		payload account.QrPayload
		found   bool
	}
	done := make(chan decoded, 1)
	go func() {
		payload, found := s.decoder.Decode(img)
		done <- decoded{payload, found}
	}()

	select {
	case r := <-done:
		return Sample{Display: d, Payload: r.payload, Found: r.found}
	case <-captureCtx.Done():
		err := captureCtx.Err()
		if ctx.Err() == nil {
			err = errors.NewTimeoutError("decode "+d.String(), s.captureTimeout).WithCause(err)
		}
		s.logger.Debug("display decode abandoned", "display", d.Index, "error", err)
		return Sample{Display: d, Err: err}
	}
}

// FirstFound returns the first sample in display order that carries a
// payload.
func FirstFound(samples []Sample) (Sample, bool) {
	for _, s := range samples {
		if s.Found {
			return s, true
		}
	}
	return Sample{}, false
}

// PreconditionFailure returns the first display's error when every sample
// failed with a PreconditionError, i.e. capture cannot succeed until the
// user acts. It returns nil otherwise.
func PreconditionFailure(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	for _, s := range samples {
		if !errors.IsPrecondition(s.Err) {
			return nil
		}
	}
	return samples[0].Err
}
