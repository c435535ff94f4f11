package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = renderIcon(22)

// Icon returns the PNG tray icon.
func Icon() []byte {
	return iconBytes
}

// renderIcon draws a simple camera glyph: a body with a round lens.
func renderIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	body := color.NRGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}
	lens := color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}
	top, bottom := size/4, size-size/6
	cx, cy, r := size/2, (top+bottom)/2, size/5
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			inBody := y >= top && y < bottom && x >= 1 && x < size-1
			inHump := y >= top-size/8 && y < top && x >= size/3 && x < size-size/3
			if !inBody && !inHump {
				continue
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, lens)
			} else {
				img.SetNRGBA(x, y, body)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
