// Package printer delivers print pages to a folder or a CUPS queue.
package printer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/verte-zerg/tuibooth/internal/layout"
)

// DefaultDPI is the native resolution of the 4x6 dye-sub printers.
const DefaultDPI = 300

// Result describes a delivered job.
type Result struct {
	Printer string
	Paths   []string
}

// Sink prints one job on the named printer.
type Sink interface {
	Print(ctx context.Context, job layout.Job, printer string) (Result, error)
}

// SimulationSink writes one numbered PNG per copy into a folder.
type SimulationSink struct {
	dir  string
	text []TextChunk
	seq  atomic.Uint64
	now  func() time.Time
}

// NewSimulationSink creates a sink writing into dir.
func NewSimulationSink(dir string) *SimulationSink {
	return &SimulationSink{dir: dir, text: DefaultText(), now: time.Now}
}

// Print writes job.Copies files.
func (s *SimulationSink) Print(ctx context.Context, job layout.Job, printer string) (Result, error) {
	if job.Page == nil {
		return Result{}, fmt.Errorf("print job has no page")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create print dir: %w", err)
	}
	copies := max(job.Copies, 1)
	stamp := s.now().Format("20060102_150405")
	seq := s.seq.Add(1)
	res := Result{Printer: printer}
	for i := 0; i < copies; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := fmt.Sprintf("%s_%03d_%s_copy%d", stamp, seq, Slug(job.Description), i+1)
		if job.Cut {
			name += "_cut"
		}
		path := filepath.Join(s.dir, name+".png")
		if err := writePNGFile(path, job, s.text); err != nil {
			return res, err
		}
		res.Paths = append(res.Paths, path)
	}
	return res, nil
}

// SpoolerSink submits pages to CUPS with lp.
type SpoolerSink struct {
	command string
	dpi     int
	tmpDir  string
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSpoolerSink creates a sink using the lp command.
func NewSpoolerSink(dpi int) *SpoolerSink {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &SpoolerSink{command: "lp", dpi: dpi, run: runCommand}
}

// Print renders the page to a temp file and submits it with the copy count.
func (s *SpoolerSink) Print(ctx context.Context, job layout.Job, printer string) (Result, error) {
	if job.Page == nil {
		return Result{}, fmt.Errorf("print job has no page")
	}
	f, err := os.CreateTemp(s.tmpDir, "tuibooth-print-*.png")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create print file: %w", err)
	}
	path := f.Name()
	defer func() {
		_ = os.Remove(path)
	}()
	if err := EncodePNG(f, job.Page, DefaultText()); err != nil {
		_ = f.Close()
		return Result{}, err
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close print file: %w", err)
	}

	args := s.Args(job, printer, path)
	out, err := s.run(ctx, s.command, args...)
	if err != nil {
		return Result{}, fmt.Errorf("%s failed: %w: %s", s.command, err, strings.TrimSpace(string(out)))
	}
	return Result{Printer: printer}, nil
}

// Args builds the lp argument list.
func (s *SpoolerSink) Args(job layout.Job, printer, path string) []string {
	var args []string
	if printer != "" {
		args = append(args, "-d", printer)
	}
	args = append(args,
		"-n", strconv.Itoa(max(job.Copies, 1)),
		"-o", "ppi="+strconv.Itoa(s.dpi),
		"-o", "fit-to-page",
		"-t", job.Description,
		path,
	)
	return args
}

// Slug turns a description into a file-name fragment.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "print"
	}
	return out
}

func writePNGFile(path string, job layout.Job, text []TextChunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create print file: %w", err)
	}
	if err := EncodePNG(f, job.Page, text); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close print file: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
