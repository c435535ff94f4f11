// Package onnx runs the style model through the OpenCV DNN module.
package onnx

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/verte-zerg/tuibooth/internal/stylize"
)

// Engine wraps an OpenCV network. Inference calls are serialized.
type Engine struct {
	mu  sync.Mutex
	net gocv.Net
}

// Load reads an ONNX model. It satisfies stylize.Loader.
func Load(path string) (stylize.Engine, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("failed to read onnx model %s", path)
	}
	return &Engine{net: net}, nil
}

// Infer feeds a 1 x height x width x 3 tensor and returns the NHWC output.
func (e *Engine) Infer(input []float32, width, height int) ([]float32, int, int, error) {
	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, height, width, 3}, gocv.MatTypeCV32F, toBytes(input))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("build input tensor: %w", err)
	}
	defer func() {
		_ = blob.Close()
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer func() {
		_ = out.Close()
	}()

	sizes := out.Size()
	if len(sizes) != 4 || sizes[0] != 1 || sizes[3] != 3 {
		return nil, 0, 0, fmt.Errorf("%w: shape %v", stylize.ErrBadOutput, sizes)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read output tensor: %w", err)
	}
	result := make([]float32, len(data))
	copy(result, data)
	return result, sizes[2], sizes[1], nil
}

// Close frees the network.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}

func toBytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
