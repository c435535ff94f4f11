// Package layout turns composites into print pages and print jobs.
package layout

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/template"
)

// ErrSizeMismatch is returned when a source does not have the strip size.
var ErrSizeMismatch = errors.New("page size mismatch")

// Rasterize returns the print page for surface. Strips are duplicated side by
// side on a white 4R sheet; other sizes are copied unchanged.
func Rasterize(surface *image.RGBA) *image.RGBA {
	if surface.Bounds().Size() != template.StripSize {
		return clone(surface)
	}
	page, err := CombineSideBySide(surface, surface)
	if err != nil {
		return clone(surface)
	}
	return page
}

// SingleStrip crops a doubled strip page back to its left strip. Other pages
// are returned as is.
func SingleStrip(page *image.RGBA) *image.RGBA {
	if page.Bounds().Size() != template.FourRSize {
		return page
	}
	strip := image.NewRGBA(image.Rect(0, 0, template.StripSize.X, template.StripSize.Y))
	rowBytes := template.StripSize.X * 4
	for y := 0; y < template.StripSize.Y; y++ {
		src := page.PixOffset(page.Rect.Min.X, page.Rect.Min.Y+y)
		copy(strip.Pix[y*strip.Stride:y*strip.Stride+rowBytes], page.Pix[src:src+rowBytes])
	}
	return strip
}

// CombineSideBySide copies two strips scanline by scanline into one 4R page.
func CombineSideBySide(left, right *image.RGBA) (*image.RGBA, error) {
	for _, src := range []*image.RGBA{left, right} {
		if src == nil || src.Bounds().Size() != template.StripSize {
			return nil, fmt.Errorf("%w: want %v", ErrSizeMismatch, template.StripSize)
		}
	}
	page := image.NewRGBA(image.Rect(0, 0, template.FourRSize.X, template.FourRSize.Y))
	draw.Draw(page, page.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	rowBytes := template.StripSize.X * 4
	for y := 0; y < template.StripSize.Y; y++ {
		dst := y * page.Stride
		l := left.PixOffset(left.Rect.Min.X, left.Rect.Min.Y+y)
		r := right.PixOffset(right.Rect.Min.X, right.Rect.Min.Y+y)
		copy(page.Pix[dst:dst+rowBytes], left.Pix[l:l+rowBytes])
		copy(page.Pix[dst+rowBytes:dst+2*rowBytes], right.Pix[r:r+rowBytes])
	}
	return page, nil
}

// Job is one submission to a print sink.
type Job struct {
	Description string
	Page        *image.RGBA
	Copies      int
	Cut         bool
}

// PlanJobs maps a print option to jobs. plain and styled are the final
// composites at template resolution.
func PlanJobs(strip bool, plain, styled *image.RGBA, option model.PrintOption) ([]Job, error) {
	if plain == nil || styled == nil {
		return nil, fmt.Errorf("missing composite")
	}
	if strip {
		var left, right *image.RGBA
		var desc string
		switch option {
		case model.PrintOriginalPair:
			left, right, desc = plain, plain, "2 Original Photos (Strip)"
		case model.PrintMixed:
			left, right, desc = plain, styled, "1 Original + 1 AI (Strip)"
		case model.PrintStyledPair:
			left, right, desc = styled, styled, "2 AI Photos (Strip)"
		default:
			return nil, fmt.Errorf("unknown print option %d", option)
		}
		page, err := CombineSideBySide(left, right)
		if err != nil {
			return nil, err
		}
		return []Job{{Description: desc, Page: page, Copies: 1, Cut: true}}, nil
	}

	switch option {
	case model.PrintOriginalPair:
		return []Job{{Description: "2 Original Photos (4R)", Page: plain, Copies: 2}}, nil
	case model.PrintMixed:
		return []Job{
			{Description: "Original 4R", Page: plain, Copies: 1},
			{Description: "AI 4R", Page: styled, Copies: 1},
		}, nil
	case model.PrintStyledPair:
		return []Job{{Description: "2 AI Photos (4R)", Page: styled, Copies: 2}}, nil
	default:
		return nil, fmt.Errorf("unknown print option %d", option)
	}
}

// Profiles names the configured print queues.
type Profiles struct {
	Strip  string
	FourR  string
	Legacy string
}

// ProfilesFromSettings reads the printer names from settings.
func ProfilesFromSettings(s model.Settings) Profiles {
	return Profiles{Strip: s.PrinterStrip, FourR: s.Printer4R, Legacy: s.Printer}
}

// SelectPrinter picks the cut profile for strip jobs and the no-cut profile
// otherwise, falling back to the legacy profile.
func SelectPrinter(p Profiles, cut bool) string {
	name := p.FourR
	if cut {
		name = p.Strip
	}
	if name == "" {
		name = p.Legacy
	}
	return name
}

func clone(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}
