// Package template loads template metadata and scans the template library.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
)

// ErrInvalidTemplate marks metadata that cannot drive compositing.
var ErrInvalidTemplate = errors.New("invalid template")

// Canonical page sizes in pixels.
var (
	StripSize = image.Pt(600, 1800)
	FourRSize = image.Pt(1200, 1800)
)

// Rect is a slot rectangle in template pixel space.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Bounds returns the rectangle as an image rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Resolution is the template canvas size.
type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Boundary is the visible template area used by previews.
type Boundary struct {
	X            int `json:"x" yaml:"x"`
	Y            int `json:"y" yaml:"y"`
	Width        int `json:"width" yaml:"width"`
	Height       int `json:"height" yaml:"height"`
	CornerRadius int `json:"cornerRadius" yaml:"cornerRadius"`
}

// Metadata describes slot geometry for one template.
type Metadata struct {
	Name        string     `json:"templateName" yaml:"templateName"`
	Resolution  Resolution `json:"resolution" yaml:"resolution"`
	DPI         int        `json:"dpi" yaml:"dpi"`
	Orientation string     `json:"orientation" yaml:"orientation"`
	Type        string     `json:"type" yaml:"type"`
	PhotoSlots  []Rect     `json:"photoSlots" yaml:"photoSlots"`
	QRSlot      *Rect      `json:"qrSlot,omitempty" yaml:"qrSlot,omitempty"`
	LogoSlot    *Rect      `json:"logoSlot,omitempty" yaml:"logoSlot,omitempty"`
	Boundary    *Boundary  `json:"templateBoundary,omitempty" yaml:"templateBoundary,omitempty"`
	Notes       string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Size returns the canvas size.
func (m Metadata) Size() image.Point {
	return image.Pt(m.Resolution.Width, m.Resolution.Height)
}

// IsStrip reports whether the template is a 2x6 strip.
func (m Metadata) IsStrip() bool {
	return m.Size() == StripSize
}

// Validate checks the canvas and that every slot lies inside it.
func (m Metadata) Validate() error {
	if m.Resolution.Width <= 0 || m.Resolution.Height <= 0 {
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidTemplate, m.Resolution.Width, m.Resolution.Height)
	}
	canvas := image.Rect(0, 0, m.Resolution.Width, m.Resolution.Height)
	for i, slot := range m.PhotoSlots {
		if err := checkSlot(canvas, slot); err != nil {
			return fmt.Errorf("%w: photo slot %d: %v", ErrInvalidTemplate, i, err)
		}
	}
	if m.QRSlot != nil {
		if err := checkSlot(canvas, *m.QRSlot); err != nil {
			return fmt.Errorf("%w: qr slot: %v", ErrInvalidTemplate, err)
		}
	}
	if m.LogoSlot != nil {
		if err := checkSlot(canvas, *m.LogoSlot); err != nil {
			return fmt.Errorf("%w: logo slot: %v", ErrInvalidTemplate, err)
		}
	}
	return nil
}

func checkSlot(canvas image.Rectangle, slot Rect) error {
	if slot.Width <= 0 || slot.Height <= 0 {
		return fmt.Errorf("empty rectangle %dx%d", slot.Width, slot.Height)
	}
	if !slot.Bounds().In(canvas) {
		return fmt.Errorf("rectangle %v outside canvas %v", slot.Bounds(), canvas)
	}
	return nil
}

// ParseMetadata decodes and validates metadata JSON.
func ParseMetadata(data []byte) (Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// LoadMetadata reads and validates a metadata file.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read template metadata: %w", err)
	}
	return ParseMetadata(data)
}
