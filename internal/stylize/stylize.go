// Package stylize applies the neural style filter to captured frames.
//
// The filter is best effort: every failure yields the original frame.
package stylize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// MinSide is the smallest edge fed to the model.
const MinSide = 256

var (
	// ErrModelUnavailable is returned when the model cannot be loaded.
	ErrModelUnavailable = errors.New("style model unavailable")
	// ErrBadOutput is returned when the model output does not match its shape.
	ErrBadOutput = errors.New("unexpected model output")
)

// Engine runs one inference on an NHWC RGB tensor in [-1, 1].
type Engine interface {
	Infer(input []float32, width, height int) (output []float32, outWidth, outHeight int, err error)
	Close() error
}

// Loader opens an engine for the model at path.
type Loader func(path string) (Engine, error)

// Service owns the process-wide model. It is loaded at most once and is safe
// for concurrent use after loading.
type Service struct {
	path   string
	loader Loader
	logger *slog.Logger

	once    sync.Once
	mu      sync.RWMutex
	engine  Engine
	loadErr error
	closed  bool
}

// NewService creates a service that loads path with loader on first use.
func NewService(path string, loader Loader, logger *slog.Logger) *Service {
	return &Service{path: path, loader: loader, logger: logger}
}

// EnsureLoaded loads the model once. Later calls return the first result.
func (s *Service) EnsureLoaded() error {
	s.once.Do(func() {
		if s.loader == nil || s.path == "" {
			s.loadErr = ErrModelUnavailable
			return
		}
		engine, err := s.loader(s.path)
		if err != nil {
			s.loadErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
			return
		}
		s.mu.Lock()
		s.engine = engine
		s.mu.Unlock()
		s.logger.Info("style model loaded", "path", s.path)
	})
	return s.loadErr
}

// Close releases the model. Apply returns frames unchanged afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}

// Apply returns the styled frame, or frame itself when any stage fails.
func (s *Service) Apply(ctx context.Context, frame model.Frame) model.Frame {
	if frame.Empty() {
		return frame
	}
	out, err := s.Stylize(ctx, frame.Image)
	if err != nil {
		s.logger.Warn("style filter skipped", "error", err)
		return frame
	}
	return model.Frame{Image: out, CapturedAt: frame.CapturedAt}
}

// Stylize runs the full pipeline and reports the first failure.
func (s *Service) Stylize(ctx context.Context, img *image.RGBA) (*image.RGBA, error) {
	if err := s.EnsureLoaded(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.engine == nil {
		return nil, ErrModelUnavailable
	}
	return Pipeline(ctx, s.engine, img)
}

// Pipeline resizes img to the model size, runs engine and restores the original size.
func Pipeline(ctx context.Context, engine Engine, img *image.RGBA) (*image.RGBA, error) {
	origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
	if origW <= 0 || origH <= 0 {
		return nil, fmt.Errorf("empty input")
	}
	w, h := TargetSize(origW, origH)
	input := Resize(img, w, h)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, outW, outH, err := engine.Infer(Normalize(input), w, h)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	styled, err := Denormalize(out, outW, outH)
	if err != nil {
		return nil, err
	}
	return Resize(styled, origW, origH), nil
}

// TargetSize rounds each edge down to a multiple of 8, raising edges below MinSide to MinSide.
func TargetSize(w, h int) (int, int) {
	return targetSide(w), targetSide(h)
}

func targetSide(v int) int {
	if v < MinSide {
		return MinSide
	}
	return v - v%8
}

// Resize scales img to w x h. Same-size input is returned as is.
func Resize(img *image.RGBA, w, h int) *image.RGBA {
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

// Normalize packs img into an NHWC RGB tensor with values v/127.5 - 1.
func Normalize(img *image.RGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3]
			out = append(out,
				float32(p[0])/127.5-1,
				float32(p[1])/127.5-1,
				float32(p[2])/127.5-1,
			)
		}
	}
	return out
}

// Denormalize maps an NHWC RGB tensor in [-1, 1] back to an opaque image.
func Denormalize(t []float32, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 || len(t) != w*h*3 {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrBadOutput, len(t), w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(t); i, j = i+3, j+4 {
		img.Pix[j] = toByte(t[i])
		img.Pix[j+1] = toByte(t[i+1])
		img.Pix[j+2] = toByte(t[i+2])
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

func toByte(v float32) uint8 {
	f := (float64(v) + 1) / 2
	if math.IsNaN(f) || f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return uint8(math.Round(f * 255))
}
