package template

import (
	"fmt"
	"image"
	_ "image/jpeg" // JPEG display images.
	_ "image/png"  // PNG template images.
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
)

const displaySuffix = " double.png"

// Template is one usable entry of the template library.
type Template struct {
	Name        string
	UsePath     string
	DisplayPath string
	MetaPath    string
	Meta        Metadata
}

// LoadLibrary scans dir for templates. A template needs a use image and a
// same-named JSON file; entries whose metadata is invalid are skipped.
func LoadLibrary(dir string, logger *slog.Logger) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template dir: %w", err)
	}
	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files[strings.ToLower(entry.Name())] = entry.Name()
	}

	var templates []Template
	for _, entry := range entries {
		name := entry.Name()
		lower := strings.ToLower(name)
		if entry.IsDir() || !strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, displaySuffix) {
			continue
		}
		base := name[:len(name)-len(".png")]
		metaName, ok := files[strings.ToLower(base)+".json"]
		if !ok {
			continue
		}
		metaPath := filepath.Join(dir, metaName)
		meta, err := LoadMetadata(metaPath)
		if err != nil {
			logger.Warn("skipping template", "template", base, "error", err)
			continue
		}
		display := filepath.Join(dir, name)
		if alt, ok := files[strings.ToLower(base)+displaySuffix]; ok {
			display = filepath.Join(dir, alt)
		}
		templates = append(templates, Template{
			Name:        base,
			UsePath:     filepath.Join(dir, name),
			DisplayPath: display,
			MetaPath:    metaPath,
			Meta:        meta,
		})
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates, nil
}

// Find returns the template with the given name.
func Find(templates []Template, name string) (Template, bool) {
	for _, t := range templates {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Template{}, false
}

// LoadImage decodes the full-resolution use image.
func (t Template) LoadImage() (*image.RGBA, error) {
	return decodeRGBA(t.UsePath)
}

// LoadDisplay decodes the preview image.
func (t Template) LoadDisplay() (*image.RGBA, error) {
	return decodeRGBA(t.DisplayPath)
}

func decodeRGBA(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template image: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			_ = cerr
		}
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template image: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out, nil
}
