package tui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

const upperHalf = "▀"

// fitCells returns the largest cell grid with the aspect of src that fits in
// cols x rows. Every cell shows two vertically stacked pixels.
func fitCells(src image.Rectangle, cols, rows int) (int, int) {
	w, h := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	pxRows := rows * 2
	if w*pxRows > h*cols {
		pxRows = h * cols / w
	} else {
		cols = w * pxRows / h
	}
	if cols < 1 {
		cols = 1
	}
	rows = pxRows / 2
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// renderHalfBlocks draws img into at most cols x rows terminal cells using
// upper half blocks with the top pixel as foreground and the bottom as background.
func renderHalfBlocks(img *image.RGBA, cols, rows int) string {
	if img == nil {
		return ""
	}
	cols, rows = fitCells(img.Bounds(), cols, rows)
	if cols == 0 {
		return ""
	}
	small := image.NewRGBA(image.Rect(0, 0, cols, rows*2))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var b strings.Builder
	for y := 0; y < rows; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < cols; x++ {
			top := hexAt(small, x, 2*y)
			bottom := hexAt(small, x, 2*y+1)
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render(upperHalf))
		}
	}
	return b.String()
}

func hexAt(img *image.RGBA, x, y int) string {
	i := img.PixOffset(x, y)
	return fmt.Sprintf("#%02x%02x%02x", img.Pix[i], img.Pix[i+1], img.Pix[i+2])
}
