// Package cvcam implements the camera driver on OpenCV video capture.
package cvcam

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/verte-zerg/tuibooth/internal/camera"
)

// Driver opens OpenCV capture devices.
type Driver struct{}

// Open opens device index with the given backend.
func (Driver) Open(index int, backend camera.Backend) (camera.Device, error) {
	vc, err := gocv.VideoCaptureDeviceWithAPI(index, api(backend))
	if err != nil {
		return nil, fmt.Errorf("open device %d (%s): %w", index, backend, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("device %d (%s) not opened", index, backend)
	}
	return &device{vc: vc, mat: gocv.NewMat()}, nil
}

func api(b camera.Backend) gocv.VideoCaptureAPI {
	switch b {
	case camera.BackendMSMF:
		return gocv.VideoCaptureMSMF
	case camera.BackendDShow:
		return gocv.VideoCaptureDshow
	default:
		return gocv.VideoCaptureAny
	}
}

type device struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

func (d *device) Read(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, camera.ErrReadFailure
	}
	if ok := d.vc.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, camera.ErrReadFailure
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	return camera.ToRGBA(img), nil
}

// Configure applies the DSLR capture profile.
func (d *device) Configure(width, height int, autofocus bool) (int, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, 0, camera.ErrReadFailure
	}
	d.vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	d.vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	if autofocus {
		d.vc.Set(gocv.VideoCaptureAutoFocus, 1)
	}
	return int(d.vc.Get(gocv.VideoCaptureFrameWidth)), int(d.vc.Get(gocv.VideoCaptureFrameHeight)), nil
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.mat.Close()
	return d.vc.Close()
}
