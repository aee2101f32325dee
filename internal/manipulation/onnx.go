//go:build cgo
// +build cgo

package manipulation

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// ONNX classifier input geometry (Xception-style 299x299 RGB).
const (
	onnxInputEdge = 299
	onnxChannels  = 3
)

// ONNXClassifier scores images with an ONNX manipulation model. Requires CGO
// and the onnxruntime shared library.
type ONNXClassifier struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXClassifier loads the model at modelPath. InitializeEnvironment is
// called if not already done.
func NewONNXClassifier(modelPath string) (*ONNXClassifier, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	inputData := make([]float32, onnxInputEdge*onnxInputEdge*onnxChannels)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, onnxChannels, onnxInputEdge, onnxInputEdge), inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputData := make([]float32, 1)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, 1), outputData)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"score"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Score runs the model and returns a manipulation probability in [0,1].
func (c *ONNXClassifier) Score(ctx context.Context, img image.Image) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	preprocessInto(img, c.inputTensor.GetData())
	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("%w: inference failed: %v", ErrClassifierUnavailable, err)
	}

	logit := float64(c.outputTensor.GetData()[0])
	return 1.0 / (1.0 + math.Exp(-logit)), nil
}

// Close destroys the session and tensors.
func (c *ONNXClassifier) Close() error {
	var err error
	if c.session != nil {
		err = c.session.Destroy()
		c.session = nil
	}
	if c.inputTensor != nil {
		_ = c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		_ = c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	return err
}

// preprocessInto resizes img to the model input size and writes CHW
// float values scaled to [-1,1] into dst.
func preprocessInto(img image.Image, dst []float32) {
	resized := image.NewRGBA(image.Rect(0, 0, onnxInputEdge, onnxInputEdge))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := onnxInputEdge * onnxInputEdge
	for y := 0; y < onnxInputEdge; y++ {
		for x := 0; x < onnxInputEdge; x++ {
			i := resized.PixOffset(x, y)
			pos := y*onnxInputEdge + x
			dst[pos] = float32(resized.Pix[i])/127.5 - 1
			dst[plane+pos] = float32(resized.Pix[i+1])/127.5 - 1
			dst[2*plane+pos] = float32(resized.Pix[i+2])/127.5 - 1
		}
	}
}
