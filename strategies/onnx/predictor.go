// Package onnx runs an exported classifier through onnxruntime as a
// strategies.Predictor.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ErrFeatureShape = errors.New("feature window does not match model input")

// Config describes a model taking a (1, Window) float32 input and producing
// a (1, 1) probability.
type Config struct {
	ModelPath   string
	LibraryPath string // empty uses ONNXRUNTIME_LIB or the platform default
	InputName   string // "input"
	OutputName  string // "output"
	Window      int
}

// DefaultLibraryPath returns where the onnxruntime shared library is
// expected on this platform.
func DefaultLibraryPath() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "/usr/lib/libonnxruntime.so"
	}
}

var (
	initOnce sync.Once
	initErr  error
)

// Initialize loads the shared library once per process.
func Initialize(libPath string) error {
	initOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if libPath == "" {
			libPath = DefaultLibraryPath()
		}
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

type Predictor struct {
	mu      sync.Mutex
	window  int
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewPredictor(cfg Config) (*Predictor, error) {
	if cfg.Window < 1 {
		return nil, fmt.Errorf("%w: window %d", ErrFeatureShape, cfg.Window)
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	if err := Initialize(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(cfg.Window)), make([]float32, cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Predictor{
		window:  cfg.Window,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Predict copies features into the bound input tensor and runs the session.
func (p *Predictor) Predict(features []float32) (float32, error) {
	if len(features) != p.window {
		return 0, fmt.Errorf("%w: got %d want %d", ErrFeatureShape, len(features), p.window)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return 0, errors.New("predictor closed")
	}
	copy(p.input.GetData(), features)
	if err := p.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	return p.output.GetData()[0], nil
}

func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.session != nil {
		errs = append(errs, p.session.Destroy())
		p.session = nil
	}
	if p.input != nil {
		errs = append(errs, p.input.Destroy())
		p.input = nil
	}
	if p.output != nil {
		errs = append(errs, p.output.Destroy())
		p.output = nil
	}
	return errors.Join(errs...)
}
