// Package composite places captured frames into template slots.
package composite

import (
	"context"
	"image"
	"image/color"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/template"
)

// Stylizer turns a frame into its styled variant. Failures must return the input frame.
type Stylizer interface {
	Apply(ctx context.Context, frame model.Frame) model.Frame
}

// Engine builds plain and styled composites.
type Engine struct {
	stylizer Stylizer
	logger   *slog.Logger
}

// NewEngine creates an engine. stylizer may be nil when no styled variant is needed.
func NewEngine(stylizer Stylizer, logger *slog.Logger) *Engine {
	return &Engine{stylizer: stylizer, logger: logger}
}

// Compose renders frames into the template. When styled is set each frame is
// passed through the stylizer before placement.
func (e *Engine) Compose(ctx context.Context, background image.Image, meta template.Metadata, frames []model.Frame, styled bool) *image.RGBA {
	if len(meta.PhotoSlots) == 0 {
		e.logger.Warn("template has no photo slots", "template", meta.Name)
	}
	if !styled || e.stylizer == nil {
		return Composite(background, meta, frames)
	}
	variant := make([]model.Frame, len(frames))
	for i, frame := range frames {
		if i >= len(meta.PhotoSlots) || frame.Empty() {
			continue
		}
		variant[i] = e.stylizer.Apply(ctx, frame)
	}
	return Composite(background, meta, variant)
}

// Composite draws the background and then frames[i] into photo slot i.
// Empty frames leave their slot untouched; frames without a slot are ignored.
func Composite(background image.Image, meta template.Metadata, frames []model.Frame) *image.RGBA {
	size := meta.Size()
	canvas := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	drawBackground(canvas, background)
	for i, slot := range meta.PhotoSlots {
		if i >= len(frames) || frames[i].Empty() {
			continue
		}
		PlaceFill(canvas, frames[i].Image, slot.Bounds())
	}
	return canvas
}

// PlaceFill scales src to cover dst fully and crops the overflow symmetrically.
func PlaceFill(canvas draw.Image, src image.Image, dst image.Rectangle) {
	dst = dst.Intersect(canvas.Bounds())
	if dst.Empty() {
		return
	}
	crop := AspectFillCrop(src.Bounds(), dst.Dx(), dst.Dy())
	if crop.Empty() {
		return
	}
	draw.CatmullRom.Scale(canvas, dst, src, crop, draw.Src, nil)
}

// AspectFillCrop returns the centered region of src whose aspect ratio matches w x h.
func AspectFillCrop(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw <= 0 || sh <= 0 || w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	cropW, cropH := sw, sh
	if sw*h > sh*w {
		cropW = (sh*w + h/2) / h
	} else {
		cropH = (sw*h + w/2) / w
	}
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}
	x0 := src.Min.X + (sw-cropW)/2
	y0 := src.Min.Y + (sh-cropH)/2
	return image.Rect(x0, y0, x0+cropW, y0+cropH)
}

// PlaceQR draws qr uniformly scaled and centered into slot, above all other content.
// It does nothing when slot is nil.
func PlaceQR(surface *image.RGBA, qr image.Image, slot *template.Rect) {
	if slot == nil || qr == nil {
		return
	}
	area := slot.Bounds().Intersect(surface.Bounds())
	qb := qr.Bounds()
	if area.Empty() || qb.Empty() {
		return
	}
	w, h := area.Dx(), area.Dy()
	if qb.Dx()*h > qb.Dy()*w {
		h = qb.Dy() * w / qb.Dx()
	} else {
		w = qb.Dx() * h / qb.Dy()
	}
	x0 := area.Min.X + (area.Dx()-w)/2
	y0 := area.Min.Y + (area.Dy()-h)/2
	draw.NearestNeighbor.Scale(surface, image.Rect(x0, y0, x0+w, y0+h), qr, qb, draw.Src, nil)
}

// Clone returns a deep copy of img.
func Clone(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

func drawBackground(canvas *image.RGBA, background image.Image) {
	if background == nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		return
	}
	if background.Bounds().Size() == canvas.Bounds().Size() {
		draw.Draw(canvas, canvas.Bounds(), background, background.Bounds().Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), background, background.Bounds(), draw.Src, nil)
}
