package vision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"pothole-detect/internal/logger"
	"pothole-detect/internal/model"
)

// Classifier runs the binary pothole model. It is loaded once and never
// mutated afterwards; every call to PredictFile allocates its own tensors, so
// concurrent calls share only the read-only session.
type Classifier struct {
	modelPath   string
	session     *ort.DynamicAdvancedSession
	spec        InputSpec
	outputShape ort.Shape
}

// NewClassifier loads the ONNX artifact at modelPath. A missing artifact is
// reported as ErrModelNotFound before the runtime is touched.
func NewClassifier(modelPath, onnxLibPath string) (*Classifier, error) {
	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("stat model: %w", err)
	}

	if onnxLibPath != "" {
		ort.SetSharedLibraryPath(onnxLibPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx init environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx model has no inputs or outputs")
	}

	spec, err := specFromDims(inputs[0].Dimensions)
	if err != nil {
		return nil, err
	}

	outputShape := make(ort.Shape, len(outputs[0].Dimensions))
	for i, d := range outputs[0].Dimensions {
		if d <= 0 {
			d = 1
		}
		outputShape[i] = d
	}
	if outputShape.FlattenedSize() < 1 {
		return nil, fmt.Errorf("onnx model output %v is empty", outputs[0].Dimensions)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("onnx new session: %w", err)
	}

	logger.Info("model loaded",
		"path", modelPath,
		"input", inputs[0].Name,
		"layout", spec.Layout.String(),
		"shape", spec.Shape(),
		"output", outputs[0].Name,
	)

	return &Classifier{
		modelPath:   modelPath,
		session:     session,
		spec:        spec,
		outputShape: outputShape,
	}, nil
}

// InputSpec reports the tensor layout the loaded model consumes.
func (c *Classifier) InputSpec() InputSpec {
	return c.spec
}

// PredictFile decodes the image at path, preprocesses it, runs one forward
// pass and thresholds the score. Failures come back as *PredictError.
func (c *Classifier) PredictFile(ctx context.Context, path string) (model.Prediction, error) {
	log := logger.FromContext(ctx)
	log.Debug("loading image", "path", path)

	img, err := DecodeFile(path)
	if err != nil {
		return model.Prediction{}, newPredictError(KindDecode, err)
	}
	log.Debug("image loaded", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	inputData, err := Preprocess(img, c.spec)
	if err != nil {
		return model.Prediction{}, newPredictError(KindPreprocess, err)
	}
	log.Debug("image array ready", "shape", c.spec.Shape())

	if err := ctx.Err(); err != nil {
		return model.Prediction{}, newPredictError(KindInference, err)
	}

	score, err := c.run(inputData)
	if err != nil {
		return model.Prediction{}, newPredictError(KindInference, err)
	}
	log.Debug("raw prediction output", "score", score)

	return Classify(score), nil
}

func (c *Classifier) run(inputData []float32) (float32, error) {
	input, err := ort.NewTensor(ort.NewShape(c.spec.Shape()...), inputData)
	if err != nil {
		return 0, fmt.Errorf("onnx new input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](c.outputShape)
	if err != nil {
		return 0, fmt.Errorf("onnx new output tensor: %w", err)
	}
	defer output.Destroy()

	if err := c.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}

	outData := output.GetData()
	if len(outData) == 0 {
		return 0, fmt.Errorf("onnx run produced no output")
	}
	score := outData[0]
	if math.IsNaN(float64(score)) {
		return 0, fmt.Errorf("onnx run produced NaN")
	}
	return score, nil
}

// Close releases the session and the runtime environment.
func (c *Classifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}
