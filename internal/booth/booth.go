// Package booth runs the post-capture pipeline: composite variants, upload
// and QR placement, print jobs and session accounting.
package booth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuibooth/internal/cloud"
	"github.com/verte-zerg/tuibooth/internal/composite"
	"github.com/verte-zerg/tuibooth/internal/layout"
	"github.com/verte-zerg/tuibooth/internal/logging"
	"github.com/verte-zerg/tuibooth/internal/model"
	"github.com/verte-zerg/tuibooth/internal/printer"
	"github.com/verte-zerg/tuibooth/internal/template"
)

// ErrNotComposed is returned when a session is published or printed before Compose.
var ErrNotComposed = errors.New("session has no composites")

// Ledger persists finished sessions.
type Ledger interface {
	InsertSession(ctx context.Context, rec model.SessionRecord, prints []model.PrintRecord) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	ObserveCompose(variant string, d time.Duration)
	Uploaded(ok bool)
	Printed(cut bool, copies int)
	SetRemaining(n int)
	SessionFinished(outcome string)
}

// Config configures a Service.
type Config struct {
	Profiles  layout.Profiles
	MachineID string
	Settle    time.Duration
	QRSize    int
}

// ConfigFromSettings builds the pipeline config from kiosk settings.
func ConfigFromSettings(s model.Settings, machineID string) Config {
	return Config{
		Profiles:  layout.ProfilesFromSettings(s),
		MachineID: machineID,
		Settle:    time.Duration(s.PrintSettleS) * time.Second,
		QRSize:    composite.DefaultQRSize,
	}
}

// Session is the state of one guest after capture.
type Session struct {
	ID        string
	StartedAt time.Time
	Template  template.Template
	Shots     model.ShotSet

	// Plain and Styled are the current composites, including the QR once published.
	Plain  *image.RGBA
	Styled *image.RGBA

	plainBase  *image.RGBA
	styledBase *image.RGBA

	StyleOK  bool
	Uploaded bool
	Link     string
	Option   model.PrintOption
	Prints   []model.PrintRecord
}

// NewSession starts a session record for tmpl.
func NewSession(tmpl template.Template, shots model.ShotSet, startedAt time.Time) *Session {
	return &Session{ID: uuid.NewString(), StartedAt: startedAt, Template: tmpl, Shots: shots}
}

// Service wires the compositor, backend, print sink and ledger.
type Service struct {
	cfg      Config
	engine   *composite.Engine
	styleOK  func() bool
	client   cloud.Client
	sink     printer.Sink
	ledger   Ledger
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the pipeline. styleOK reports whether the style model
// is usable; ledger and recorder may be nil.
func NewService(cfg Config, engine *composite.Engine, styleOK func() bool, client cloud.Client, sink printer.Sink, ledger Ledger, recorder Recorder, logger *slog.Logger) *Service {
	if cfg.QRSize <= 0 {
		cfg.QRSize = composite.DefaultQRSize
	}
	if styleOK == nil {
		styleOK = func() bool { return false }
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		cfg:      cfg,
		engine:   engine,
		styleOK:  styleOK,
		client:   client,
		sink:     sink,
		ledger:   ledger,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Compose builds the plain and styled composites from the selected frames.
// A missing template image falls back to a white canvas.
func (s *Service) Compose(ctx context.Context, sess *Session, frames []model.Frame) error {
	bg, err := sess.Template.LoadImage()
	if err != nil {
		logging.WithSession(s.logger, sess.ID).Warn("template image unavailable, using blank canvas", "template", sess.Template.Name, "error", err)
	}
	meta := sess.Template.Meta

	start := s.now()
	plain := s.engine.Compose(ctx, imageOrNil(bg), meta, frames, false)
	s.recorder.ObserveCompose("plain", s.now().Sub(start))
	if err := ctx.Err(); err != nil {
		return err
	}

	start = s.now()
	styled := s.engine.Compose(ctx, imageOrNil(bg), meta, frames, true)
	s.recorder.ObserveCompose("styled", s.now().Sub(start))
	if err := ctx.Err(); err != nil {
		return err
	}

	sess.plainBase, sess.styledBase = plain, styled
	sess.Plain, sess.Styled = plain, styled
	sess.StyleOK = s.styleOK()
	sess.Uploaded, sess.Link = false, ""
	return nil
}

// Publish uploads single-strip renditions of both composites and places the
// returned link as a QR code on both. Upload failures leave the composites
// without QR; the error is returned for display only.
func (s *Service) Publish(ctx context.Context, sess *Session) error {
	if sess.plainBase == nil || sess.styledBase == nil {
		return ErrNotComposed
	}
	original, err := encodeUpload(sess.plainBase)
	if err != nil {
		return err
	}
	styled, err := encodeUpload(sess.styledBase)
	if err != nil {
		return err
	}

	log := logging.WithSession(s.logger, sess.ID)
	up, err := s.client.UploadSession(ctx, original, styled)
	s.recorder.Uploaded(err == nil)
	if err != nil {
		log.Warn("session upload failed", "error", err)
		return fmt.Errorf("upload failed: %w", err)
	}
	sess.Uploaded = true
	sess.Link = up.Link
	log.Info("session uploaded", "remote_session", up.SessionID)

	if up.Link == "" {
		return nil
	}
	if sess.Template.Meta.QRSlot == nil {
		log.Warn("template has no qr slot", "template", sess.Template.Name)
		return nil
	}
	qr, err := composite.GenerateQR(up.Link, s.cfg.QRSize)
	if err != nil {
		log.Warn("qr generation failed", "error", err)
		return nil
	}
	sess.Plain = composite.Clone(sess.plainBase)
	sess.Styled = composite.Clone(sess.styledBase)
	composite.PlaceQR(sess.Plain, qr, sess.Template.Meta.QRSlot)
	composite.PlaceQR(sess.Styled, qr, sess.Template.Meta.QRSlot)
	return nil
}

// Print submits the jobs of option. A failing job aborts the remaining jobs.
func (s *Service) Print(ctx context.Context, sess *Session, option model.PrintOption) ([]model.PrintRecord, error) {
	if sess.Plain == nil || sess.Styled == nil {
		return nil, ErrNotComposed
	}
	jobs, err := layout.PlanJobs(sess.Template.Meta.IsStrip(), sess.Plain, sess.Styled, option)
	if err != nil {
		return nil, err
	}
	sess.Option = option
	log := logging.WithSession(s.logger, sess.ID)
	var records []model.PrintRecord
	for _, job := range jobs {
		name := layout.SelectPrinter(s.cfg.Profiles, job.Cut)
		res, err := s.sink.Print(ctx, job, name)
		if err != nil {
			log.Error("print job failed", "job", job.Description, "printer", name, "error", err)
			sess.Prints = append(sess.Prints, records...)
			return records, fmt.Errorf("print %q: %w", job.Description, err)
		}
		rec := model.PrintRecord{
			SessionID:   sess.ID,
			PrintedAt:   s.now(),
			Description: job.Description,
			Printer:     res.Printer,
			Copies:      job.Copies,
			Cut:         job.Cut,
		}
		if len(res.Paths) > 0 {
			rec.Path = res.Paths[0]
		}
		records = append(records, rec)
		s.recorder.Printed(job.Cut, job.Copies)
		log.Info("print job submitted", "job", job.Description, "printer", name, "copies", job.Copies, "cut", job.Cut)
	}
	sess.Prints = append(sess.Prints, records...)
	return records, nil
}

// Finish waits for the printer to settle, records the session, consumes one
// licensed session and returns the remaining count. A status failure reports
// zero remaining so the kiosk locks.
func (s *Service) Finish(ctx context.Context, sess *Session) (int, error) {
	if err := sleep(ctx, s.cfg.Settle); err != nil {
		return 0, err
	}
	s.Record(ctx, sess, "completed")

	if _, err := s.client.Decrement(ctx, s.cfg.MachineID); err != nil {
		s.logger.Warn("session decrement failed", "error", err)
	}
	dev, err := s.client.Status(ctx, s.cfg.MachineID)
	if err != nil {
		s.logger.Warn("device status failed", "error", err)
		s.recorder.SetRemaining(0)
		return 0, err
	}
	s.recorder.SetRemaining(dev.RemainingSessions)
	return dev.RemainingSessions, nil
}

// Record writes the session to the ledger and counts its outcome.
func (s *Service) Record(ctx context.Context, sess *Session, outcome string) {
	s.recorder.SessionFinished(outcome)
	if s.ledger == nil {
		return
	}
	rec := model.SessionRecord{
		ID:          sess.ID,
		StartedAt:   sess.StartedAt,
		EndedAt:     s.now(),
		Template:    sess.Template.Name,
		Shots:       len(sess.Shots),
		Uploaded:    sess.Uploaded,
		Link:        sess.Link,
		StyleOK:     sess.StyleOK,
		PrintOption: sess.Option,
	}
	if err := s.ledger.InsertSession(ctx, rec, sess.Prints); err != nil {
		logging.WithSession(s.logger, sess.ID).Warn("ledger write failed", "error", err)
	}
}

// encodeUpload crops strip composites to one strip and encodes PNG.
func encodeUpload(surface *image.RGBA) ([]byte, error) {
	page := layout.SingleStrip(layout.Rasterize(surface))
	var buf bytes.Buffer
	if err := printer.EncodePNG(&buf, page, printer.DefaultText()); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	return buf.Bytes(), nil
}

func imageOrNil(img *image.RGBA) image.Image {
	if img == nil {
		return nil
	}
	return img
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveCompose(string, time.Duration) {}
func (nopRecorder) Uploaded(bool)                        {}
func (nopRecorder) Printed(bool, int)                    {}
func (nopRecorder) SetRemaining(int)                     {}
func (nopRecorder) SessionFinished(string)               {}
