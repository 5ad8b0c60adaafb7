package screen

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"golang.org/x/image/draw"

	"github.com/Iron-Ham/signal-setup/internal/account"
)

const (
	// FastMaxDimension caps the longest side of the image used for the
	// first decode pass.
	FastMaxDimension = 1600

	// maxFullPixels is the largest image decoded at full size; larger
	// captures get a slightly upscaled fast image instead.
	maxFullPixels = 3_000_000

	upscaleFactor = 1.15
)

// QRDecoder decodes QR codes with gozxing.
type QRDecoder struct{}

// NewQRDecoder returns a QRDecoder.
func NewQRDecoder() *QRDecoder { return &QRDecoder{} }

// Decode implements Decoder. A fast pass runs on a downscaled copy; if it
// finds nothing a try-harder pass runs on the full image, or on a slightly
// upscaled copy of the fast image for very large captures.
func (QRDecoder) Decode(img image.Image) (account.QrPayload, bool) {
	if img == nil {
		return "", false
	}
	fast := resizeToMax(img, FastMaxDimension)
	if p, ok := decodeQR(fast, false); ok {
		return p, true
	}

	b := img.Bounds()
	if b.Dx()*b.Dy() <= maxFullPixels {
		return decodeQR(img, true)
	}
	fb := fast.Bounds()
	return decodeQR(scale(fast, int(float64(fb.Dx())*upscaleFactor), int(float64(fb.Dy())*upscaleFactor)), true)
}

func decodeQR(img image.Image, tryHarder bool) (account.QrPayload, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}

	hints := map[gozxing.DecodeHintType]any{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
	}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(result.GetText())
	if !account.IsLinkPayload(text) {
		return "", false
	}
	return account.QrPayload(text), true
}

// resizeToMax scales img down so its longest side is at most maxDim.
func resizeToMax(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= maxDim || longest == 0 {
		return img
	}
	ratio := float64(maxDim) / float64(longest)
	return scale(img, int(float64(b.Dx())*ratio), int(float64(b.Dy())*ratio))
}

func scale(img image.Image, w, h int) image.Image {
	dst := image.NewGray(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// DecodeFile decodes a PNG or JPEG screenshot. found is false when the image
// holds no link QR code.
func DecodeFile(path string, decoder Decoder) (payload account.QrPayload, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", false, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	if decoder == nil {
		decoder = NewQRDecoder()
	}
	payload, found = decoder.Decode(img)
	return payload, found, nil
}
