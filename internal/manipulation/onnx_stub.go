//go:build !cgo
// +build !cgo

package manipulation

import (
	"context"
	"fmt"
	"image"
)

// ONNXClassifier stub type when built without CGO (see onnx.go for the real
// implementation).
type ONNXClassifier struct{}

// NewONNXClassifier returns an error when built without CGO.
func NewONNXClassifier(_ string) (*ONNXClassifier, error) {
	return nil, fmt.Errorf("ONNX classifier requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Score is not available without CGO.
func (c *ONNXClassifier) Score(ctx context.Context, img image.Image) (float64, error) {
	return 0, ErrClassifierUnavailable
}

// Close is a no-op.
func (c *ONNXClassifier) Close() error { return nil }
