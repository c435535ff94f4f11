package printer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/tuibooth/internal/layout"
)

func testPage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 30), B: 200, A: 255})
		}
	}
	return img
}

func TestEncodePNGCarriesText(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, testPage(), DefaultText()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	text, err := ReadText(buf.Bytes())
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	if text["Software"] != "tuibooth" || text["Author"] != "tuibooth" {
		t.Fatalf("unexpected text chunks: %v", text)
	}
	if !strings.HasPrefix(text["Copyright"], "Copyright") {
		t.Fatalf("missing copyright: %v", text)
	}
	decoded, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode with text chunks: %v", err)
	}
	if decoded.Bounds() != testPage().Bounds() {
		t.Fatalf("unexpected bounds %v", decoded.Bounds())
	}
}

func TestEncodePNGRejectsEmptyKeyword(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, testPage(), []TextChunk{{Keyword: "", Text: "x"}}); err == nil {
		t.Fatalf("expected error for empty keyword")
	}
}

func TestSimulationSinkWritesNumberedCopies(t *testing.T) {
	dir := t.TempDir()
	sink := NewSimulationSink(dir)
	sink.now = func() time.Time { return time.Date(2025, 3, 1, 14, 5, 9, 0, time.UTC) }

	job := layout.Job{Description: "2 Original Photos (4R)", Page: testPage(), Copies: 2}
	res, err := sink.Print(context.Background(), job, "Sim")
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	want := []string{
		filepath.Join(dir, "20250301_140509_001_2-original-photos-4r_copy1.png"),
		filepath.Join(dir, "20250301_140509_001_2-original-photos-4r_copy2.png"),
	}
	if !slices.Equal(res.Paths, want) {
		t.Fatalf("expected %v, got %v", want, res.Paths)
	}
	for _, path := range res.Paths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing file %s: %v", path, err)
		}
	}

	res, err = sink.Print(context.Background(), layout.Job{Description: "1 Original + 1 AI (Strip)", Page: testPage(), Copies: 1, Cut: true}, "Sim")
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if len(res.Paths) != 1 || filepath.Base(res.Paths[0]) != "20250301_140509_002_1-original-1-ai-strip_copy1_cut.png" {
		t.Fatalf("unexpected second job paths %v", res.Paths)
	}
}

func TestSimulationSinkRejectsMissingPage(t *testing.T) {
	sink := NewSimulationSink(t.TempDir())
	if _, err := sink.Print(context.Background(), layout.Job{Description: "x", Copies: 1}, ""); err == nil {
		t.Fatalf("expected error for empty job")
	}
}

func TestSpoolerSinkInvokesLP(t *testing.T) {
	sink := NewSpoolerSink(0)
	sink.tmpDir = t.TempDir()
	var gotName string
	var gotArgs []string
	var fileSeen bool
	sink.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		_, err := os.Stat(args[len(args)-1])
		fileSeen = err == nil
		return nil, nil
	}

	job := layout.Job{Description: "2 AI Photos (4R)", Page: testPage(), Copies: 2}
	res, err := sink.Print(context.Background(), job, "DNP 4R")
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if res.Printer != "DNP 4R" {
		t.Fatalf("unexpected printer %q", res.Printer)
	}
	if gotName != "lp" || !fileSeen {
		t.Fatalf("expected lp to receive an existing file, got %s %v", gotName, gotArgs)
	}
	wantPrefix := []string{"-d", "DNP 4R", "-n", "2", "-o", "ppi=300"}
	if !slices.Equal(gotArgs[:len(wantPrefix)], wantPrefix) {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	entries, _ := os.ReadDir(sink.tmpDir)
	if len(entries) != 0 {
		t.Fatalf("expected temp page removed, found %d files", len(entries))
	}
}

func TestSpoolerArgsDefaultQueue(t *testing.T) {
	sink := NewSpoolerSink(600)
	args := sink.Args(layout.Job{Description: "d", Copies: 0}, "", "/tmp/p.png")
	if slices.Contains(args, "-d") {
		t.Fatalf("expected default queue, got %v", args)
	}
	if !slices.Contains(args, "ppi=600") || !slices.Contains(args, "1") {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("1 Original + 1 AI (Strip)"); got != "1-original-1-ai-strip" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := Slug("  ++ "); got != "print" {
		t.Fatalf("unexpected empty slug %q", got)
	}
}
