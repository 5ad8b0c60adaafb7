package screen

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/signal-setup/internal/account"
	"github.com/Iron-Ham/signal-setup/internal/errors"
)

// fakeCapturer returns a tagged 1x1 image per display, or the scripted error.
type fakeCapturer struct {
	displays []Display
	errs     map[int]error
	block    map[int]bool

	mu       sync.Mutex
	captured []int
}

func (f *fakeCapturer) Displays(ctx context.Context) ([]Display, error) {
	return f.displays, nil
}

func (f *fakeCapturer) Capture(ctx context.Context, d Display) (image.Image, error) {
	f.mu.Lock()
	f.captured = append(f.captured, d.Index)
	f.mu.Unlock()

	if f.block[d.Index] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.errs[d.Index]; err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.Pix[0] = uint8(d.Index)
	return img, nil
}

// fakeDecoder "finds" a payload for display indices listed in payloads.
type fakeDecoder struct {
	payloads map[int]account.QrPayload
}

func (f fakeDecoder) Decode(img image.Image) (account.QrPayload, bool) {
	idx := int(img.(*image.Gray).Pix[0])
	p, ok := f.payloads[idx]
	return p, ok
}

func displays(n int) []Display {
	out := make([]Display, n)
	for i := range out {
		out[i] = Display{Index: i + 1}
	}
	return out
}

func TestSampler_SampleAllPreservesOrder(t *testing.T) {
	capturer := &fakeCapturer{displays: displays(4)}
	decoder := fakeDecoder{payloads: map[int]account.QrPayload{
		2: "sgnl://linkdevice?uuid=two",
		4: "sgnl://linkdevice?uuid=four",
	}}
	s := NewSampler(capturer, decoder, time.Second, nil)

	samples, err := s.SampleAll(context.Background())
	if err != nil {
		t.Fatalf("SampleAll() error = %v", err)
	}
	if len(samples) != 4 {
		t.Fatalf("got %d samples, want 4", len(samples))
	}
	for i, sample := range samples {
		if sample.Display.Index != i+1 {
			t.Errorf("samples[%d].Display = %d, want %d", i, sample.Display.Index, i+1)
		}
	}
	if samples[0].Found || !samples[1].Found || samples[2].Found || !samples[3].Found {
		t.Errorf("Found flags = %v %v %v %v", samples[0].Found, samples[1].Found, samples[2].Found, samples[3].Found)
	}

	first, ok := FirstFound(samples)
	if !ok || first.Payload != "sgnl://linkdevice?uuid=two" {
		t.Errorf("FirstFound() = (%+v, %v), want display 2", first, ok)
	}
}

func TestSampler_FailingDisplayDoesNotBlockOthers(t *testing.T) {
	capturer := &fakeCapturer{
		displays: displays(3),
		errs:     map[int]error{1: fmt.Errorf("display asleep")},
		block:    map[int]bool{2: true},
	}
	decoder := fakeDecoder{payloads: map[int]account.QrPayload{3: "sgnl://linkdevice?uuid=three"}}
	s := NewSampler(capturer, decoder, 30*time.Millisecond, nil)

	samples, err := s.SampleAll(context.Background())
	if err != nil {
		t.Fatalf("SampleAll() error = %v", err)
	}
	if samples[0].Err == nil || samples[0].Found {
		t.Errorf("display 1 = %+v, want capture error", samples[0])
	}
	if !errors.Is(samples[1].Err, errors.ErrTimeout) {
		t.Errorf("display 2 error = %v, want capture timeout", samples[1].Err)
	}
	if !samples[2].Found {
		t.Errorf("display 3 = %+v, want found", samples[2])
	}
}

// stallingDecoder blocks on display indices listed in stall until release
// is closed and delegates the rest.
type stallingDecoder struct {
	fakeDecoder
	stall   map[int]bool
	release chan struct{}
}

func (d stallingDecoder) Decode(img image.Image) (account.QrPayload, bool) {
	if d.stall[int(img.(*image.Gray).Pix[0])] {
		<-d.release
		return "", false
	}
	return d.fakeDecoder.Decode(img)
}

func TestSampler_SlowDecodeBoundedByCaptureTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	capturer := &fakeCapturer{displays: displays(2)}
	decoder := stallingDecoder{
		fakeDecoder: fakeDecoder{payloads: map[int]account.QrPayload{2: "sgnl://linkdevice?uuid=two"}},
		stall:       map[int]bool{1: true},
		release:     release,
	}
	s := NewSampler(capturer, decoder, 30*time.Millisecond, nil)

	start := time.Now()
	samples, err := s.SampleAll(context.Background())
	if err != nil {
		t.Fatalf("SampleAll() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("SampleAll() took %v, want it bounded by the capture timeout", elapsed)
	}
	if !errors.Is(samples[0].Err, errors.ErrTimeout) || samples[0].Found {
		t.Errorf("display 1 = %+v, want decode timeout", samples[0])
	}
	if !samples[1].Found {
		t.Errorf("display 2 = %+v, want found", samples[1])
	}
}

func TestSampler_NoDisplays(t *testing.T) {
	s := NewSampler(&fakeCapturer{}, fakeDecoder{}, time.Second, nil)
	if _, err := s.SampleAll(context.Background()); !errors.IsPrecondition(err) {
		t.Errorf("SampleAll() error = %v, want precondition", err)
	}
}

func TestSampler_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	capturer := &fakeCapturer{displays: displays(2), block: map[int]bool{1: true, 2: true}}
	s := NewSampler(capturer, fakeDecoder{}, time.Second, nil)

	if _, err := s.SampleAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("SampleAll() error = %v, want context.Canceled", err)
	}
}

func TestPreconditionFailure(t *testing.T) {
	perm := PermissionError(fmt.Errorf("could not create image from display"))

	tests := []struct {
		name    string
		samples []Sample
		want    bool
	}{
		{"empty", nil, false},
		{"all refused", []Sample{{Err: perm}, {Err: perm}}, true},
		{"one refused", []Sample{{Err: perm}, {}}, false},
		{"plain errors", []Sample{{Err: fmt.Errorf("x")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PreconditionFailure(tt.samples)
			if (err != nil) != tt.want {
				t.Errorf("PreconditionFailure() = %v, want failure=%v", err, tt.want)
			}
			if tt.want && !errors.Is(err, errors.ErrCapturePermission) {
				t.Errorf("PreconditionFailure() = %v, want ErrCapturePermission", err)
			}
		})
	}
}

func TestCountDisplays(t *testing.T) {
	profiler := `Graphics/Displays:

    Apple M2:

      Displays:
        Color LCD:
          Display Type: Built-in Liquid Retina Display
          Resolution: 2560 x 1664 Retina
        DELL U2720Q:
          Resolution: 3840 x 2160 (2160p/4K UHD 1 - Ultra High Definition)
`
	tests := []struct {
		name   string
		output string
		max    int
		want   int
	}{
		{"two displays", profiler, 6, 2},
		{"none reported", "Graphics/Displays:\n", 6, 1},
		{"capped", profiler, 1, 1},
		{"default cap", repeatLine("Resolution: 1x1", 10), 0, DefaultMaxDisplays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountDisplays(tt.output, tt.max); got != tt.want {
				t.Errorf("CountDisplays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsPermissionFailure(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"could not create image from display 1", true},
		{"Error: Not authorized to capture screen", true},
		{"screencapture: invalid display", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsPermissionFailure(tt.output); got != tt.want {
			t.Errorf("IsPermissionFailure(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func repeatLine(line string, n int) string {
	out := ""
	for range n {
		out += line + "\n"
	}
	return out
}
