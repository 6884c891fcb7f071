package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/onionqc/internal/models"
	"github.com/MeKo-Tech/onionqc/internal/onnx"
	"github.com/MeKo-Tech/onionqc/internal/quality"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// ONNXConfig controls ONNX session creation.
type ONNXConfig struct {
	GPU        onnx.GPUConfig
	NumThreads int
	// InputSize is used when neither the model nor its metadata fix the
	// input edge.
	InputSize int
}

// ONNXLoader loads ONNX models exported from an image classifier trainer.
type ONNXLoader struct {
	cfg     ONNXConfig
	fetcher models.Fetcher
}

// NewONNXLoader returns a loader reading artifacts through fetcher.
func NewONNXLoader(cfg ONNXConfig, fetcher models.Fetcher) *ONNXLoader {
	return &ONNXLoader{cfg: cfg, fetcher: fetcher}
}

// ONNXModel runs classification through an ONNX Runtime session.
type ONNXModel struct {
	mu       sync.RWMutex
	session  *onnxrt.DynamicAdvancedSession
	geometry onnx.InputGeometry
	labels   []string
	classes  int
}

// Load implements Loader.
func (l *ONNXLoader) Load(ctx context.Context, topology, metadata string) (Model, error) {
	meta, modelData, err := l.fetchArtifacts(ctx, topology, metadata)
	if err != nil {
		return nil, err
	}

	if err := onnx.Initialize(l.cfg.GPU.Enabled); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfoWithONNXData(modelData)
	if err != nil {
		return nil, fmt.Errorf("io info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]

	geom, err := onnx.ParseInputGeometry(in.Dimensions, l.fallbackSize(meta))
	if err != nil {
		return nil, err
	}
	if geom.Height != geom.Width {
		return nil, fmt.Errorf("model input %dx%d is not square", geom.Width, geom.Height)
	}

	classes := len(meta.Labels)
	if dims := out.Dimensions; len(dims) > 0 && dims[len(dims)-1] > 0 {
		classes = int(dims[len(dims)-1])
	}
	if classes != len(meta.Labels) {
		slog.Warn("model class count differs from metadata labels",
			"classes", classes, "labels", len(meta.Labels))
	}

	opts, err := onnx.NewSessionOptions(l.cfg.GPU, l.cfg.NumThreads)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	sess, err := onnxrt.NewDynamicAdvancedSessionWithONNXData(modelData, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	slog.Info("onnx model loaded",
		"model", meta.ModelName, "classes", classes, "input", geom.Width, "layout", geom.Layout.String())

	return &ONNXModel{session: sess, geometry: geom, labels: meta.Labels, classes: classes}, nil
}

func (l *ONNXLoader) fetchArtifacts(ctx context.Context, topology, metadata string) (Metadata, []byte, error) {
	metaData, err := l.fetcher.Fetch(ctx, metadata)
	if err != nil {
		return Metadata{}, nil, err
	}
	meta, err := ParseMetadata(metaData)
	if err != nil {
		return Metadata{}, nil, err
	}
	modelData, err := l.fetcher.Fetch(ctx, topology)
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, modelData, nil
}

func (l *ONNXLoader) fallbackSize(meta Metadata) int {
	switch {
	case meta.ImageSize > 0:
		return meta.ImageSize
	case l.cfg.InputSize > 0:
		return l.cfg.InputSize
	default:
		return DefaultInputSize
	}
}

// TotalClasses implements Model.
func (m *ONNXModel) TotalClasses() int { return m.classes }

// InputSize implements Model.
func (m *ONNXModel) InputSize() int { return m.geometry.Width }

// Classify implements Classifier. Images not already at the input size are
// resized first.
func (m *ONNXModel) Classify(ctx context.Context, img image.Image) ([]quality.ClassificationResult, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if b := img.Bounds(); b.Dx() != m.geometry.Width || b.Dy() != m.geometry.Height {
		resized, err := Preprocess(img, m.geometry.Width)
		if err != nil {
			return nil, err
		}
		img = resized
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, errors.New("model closed")
	}

	scores, err := m.run(img)
	if err != nil {
		return nil, err
	}
	return results(m.labels, onnx.Probabilities(scores)), nil
}

func (m *ONNXModel) run(img image.Image) ([]float32, error) {
	t, err := onnx.ImageTensor(img, m.geometry)
	if err != nil {
		return nil, err
	}
	defer t.Release()

	input, err := onnxrt.NewTensor(onnxrt.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("failed to destroy input tensor", "error", err)
		}
	}()

	outputs := []onnxrt.Value{nil}
	if err := m.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o == nil {
				continue
			}
			if err := o.Destroy(); err != nil {
				slog.Warn("failed to destroy output tensor", "error", err)
			}
		}
	}()

	out, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	data := out.GetData()
	if len(data) < m.classes {
		return nil, fmt.Errorf("output has %d values, want %d", len(data), m.classes)
	}

	scores := make([]float32, m.classes)
	copy(scores, data[:m.classes])
	return scores, nil
}

// Close releases the session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
