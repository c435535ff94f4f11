package camera

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG demo frames.
	_ "image/png"  // PNG demo frames.
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/verte-zerg/tuibooth/internal/model"
)

// DemoInterval is how long each demo frame stays on screen.
const DemoInterval = time.Second

const (
	patternWidth  = 640
	patternHeight = 480
	patternFrames = 6
)

// DemoFeeder cycles still images when no camera is available.
type DemoFeeder struct {
	mu     sync.Mutex
	frames []*image.RGBA
	next   int
	shown  int
	now    func() time.Time
}

// NewDemoFeeder loads jpg/jpeg/png files from dir sorted by name.
// When none can be loaded a generated test pattern set is used.
func NewDemoFeeder(dir string, logger *slog.Logger) *DemoFeeder {
	frames, err := loadDemoFrames(dir)
	if err != nil {
		logger.Warn("demo frames unavailable", "dir", dir, "error", err)
	}
	if len(frames) == 0 {
		frames = TestPattern()
		logger.Info("using generated demo frames", "count", len(frames))
	}
	return &DemoFeeder{frames: frames, shown: -1, now: time.Now}
}

// NewDemoFeederFrames builds a feeder from in-memory frames.
func NewDemoFeederFrames(frames []*image.RGBA) *DemoFeeder {
	if len(frames) == 0 {
		frames = TestPattern()
	}
	return &DemoFeeder{frames: frames, shown: -1, now: time.Now}
}

// Len returns the number of frames in the cycle.
func (d *DemoFeeder) Len() int {
	return len(d.frames)
}

// Next shows the next frame in the cycle.
func (d *DemoFeeder) Next() model.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = d.next
	d.next = (d.next + 1) % len(d.frames)
	return model.Frame{Image: d.frames[d.shown], CapturedAt: d.now()}
}

// Last returns the most recently shown frame.
func (d *DemoFeeder) Last() (model.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shown < 0 {
		return model.Frame{}, false
	}
	return model.Frame{Image: d.frames[d.shown], CapturedAt: d.now()}, true
}

func loadDemoFrames(dir string) ([]*image.RGBA, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read demo dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	frames := make([]*image.RGBA, 0, len(names))
	for _, name := range names {
		img, err := decodeFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func decodeFile(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			_ = cerr
		}
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return ToRGBA(img), nil
}

// ToRGBA converts img to a zero-origin RGBA copy.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// TestPattern returns a deterministic set of color-bar frames.
func TestPattern() []*image.RGBA {
	bars := []color.RGBA{
		{0xc0, 0xc0, 0xc0, 0xff},
		{0xc0, 0xc0, 0x00, 0xff},
		{0x00, 0xc0, 0xc0, 0xff},
		{0x00, 0xc0, 0x00, 0xff},
		{0xc0, 0x00, 0xc0, 0xff},
		{0xc0, 0x00, 0x00, 0xff},
		{0x00, 0x00, 0xc0, 0xff},
	}
	frames := make([]*image.RGBA, patternFrames)
	barWidth := patternWidth / len(bars)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, patternWidth, patternHeight))
		for y := 0; y < patternHeight; y++ {
			for x := 0; x < patternWidth; x++ {
				bar := ((x / barWidth) + i) % len(bars)
				img.SetRGBA(x, y, bars[bar])
			}
		}
		frames[i] = img
	}
	return frames
}
