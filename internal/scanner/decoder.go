package scanner

import (
	"fmt"
	"image"
	"image/color"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

const selfTestPayload = "doobie-decoder-self-test"

// Decoder extracts one textual payload from a frame. It reads QR codes and
// Code 128 barcodes. Load must succeed before Decode is used.
type Decoder struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
	loaded  bool
}

// NewDecoder creates an unloaded Decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Load builds the readers and proves them by decoding a generated probe
// code. A failure is terminal for the session that owns the decoder.
func (d *Decoder) Load() error {
	if d.loaded {
		return nil
	}

	readers := []gozxing.Reader{
		qrcode.NewQRCodeReader(),
		oned.NewCode128Reader(),
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	probe, err := RenderQR(selfTestPayload, 160)
	if err != nil {
		return fmt.Errorf("%w: render probe: %v", ErrDecoderUnavailable, err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(probe)
	if err != nil {
		return fmt.Errorf("%w: probe bitmap: %v", ErrDecoderUnavailable, err)
	}
	result, err := readers[0].Decode(bmp, hints)
	if err != nil {
		return fmt.Errorf("%w: probe decode: %v", ErrDecoderUnavailable, err)
	}
	if result.GetText() != selfTestPayload {
		return fmt.Errorf("%w: probe decoded as %q", ErrDecoderUnavailable, result.GetText())
	}

	d.readers = readers
	d.hints = hints
	d.loaded = true
	return nil
}

// Loaded reports whether Load has succeeded
func (d *Decoder) Loaded() bool {
	return d.loaded
}

// Decode returns the first payload any reader finds. A frame without a
// code is ("", false, nil); the error is reserved for an unloaded decoder.
func (d *Decoder) Decode(img image.Image) (string, bool, error) {
	if !d.loaded {
		return "", false, ErrDecoderUnavailable
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, nil
	}

	for _, r := range d.readers {
		result, err := r.Decode(bmp, d.hints)
		r.Reset()
		if err != nil {
			// not found, checksum and format errors all mean an unreadable frame
			continue
		}
		if text := result.GetText(); text != "" {
			return text, true, nil
		}
	}
	return "", false, nil
}

// RenderQR draws contents as a QR code of size x size pixels
func RenderQR(contents string, size int) (image.Image, error) {
	matrix, err := qrcode.NewQRCodeWriter().Encode(contents, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, err
	}

	w, h := matrix.GetWidth(), matrix.GetHeight()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img, nil
}
