package camera

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// Source owns a device handle for the lifetime of a capture session.
type Source struct {
	mu      sync.Mutex
	dev     Device
	mirror  bool
	now     func() time.Time
	release sync.Once
}

// NewSource wraps dev. When mirror is set every frame is flipped horizontally.
func NewSource(dev Device, mirror bool) *Source {
	return &Source{dev: dev, mirror: mirror, now: time.Now}
}

// Read pulls one frame from the device.
func (s *Source) Read(ctx context.Context) (model.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return model.Frame{}, fmt.Errorf("source released: %w", ErrReadFailure)
	}
	img, err := s.dev.Read(ctx)
	if err != nil {
		return model.Frame{}, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if img == nil || img.Rect.Empty() {
		return model.Frame{}, ErrReadFailure
	}
	if s.mirror {
		img = FlipHorizontal(img)
	}
	return model.Frame{Image: img, CapturedAt: s.now()}, nil
}

// Open reports whether the device handle is still held.
func (s *Source) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

// Release closes the device. Safe to call repeatedly and on a nil source.
func (s *Source) Release() error {
	if s == nil {
		return nil
	}
	var err error
	s.release.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.dev != nil {
			err = s.dev.Close()
			s.dev = nil
		}
	})
	return err
}

// FlipHorizontal returns a mirrored copy of img.
func FlipHorizontal(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[out.PixOffset(0, y):]
		for x := 0; x < w; x++ {
			copy(dst[x*4:x*4+4], src[(w-1-x)*4:(w-1-x)*4+4])
		}
	}
	return out
}
