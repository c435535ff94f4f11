package composite

import (
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the generated QR bitmap edge in pixels.
const DefaultQRSize = 512

// GenerateQR encodes content as a square QR bitmap.
func GenerateQR(content string, size int) (image.Image, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	code, err := qrcode.New(content, qrcode.High)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	return code.Image(size), nil
}
