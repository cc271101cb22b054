package vision

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"pothole-detect/internal/model"
)

const (
	// InputSize is the square edge the pothole model was trained on.
	InputSize = 128
	// Threshold splits the sigmoid output into pothole / not pothole.
	Threshold = 0.5
)

// Layout is the memory order of the model input tensor.
type Layout int

const (
	LayoutNHWC Layout = iota
	LayoutNCHW
)

func (l Layout) String() string {
	if l == LayoutNCHW {
		return "NCHW"
	}
	return "NHWC"
}

// InputSpec describes the single image tensor the model consumes.
type InputSpec struct {
	Layout   Layout
	Channels int
	Height   int
	Width    int
}

// Shape returns the batched tensor shape, batch size 1.
func (s InputSpec) Shape() []int64 {
	if s.Layout == LayoutNCHW {
		return []int64{1, int64(s.Channels), int64(s.Height), int64(s.Width)}
	}
	return []int64{1, int64(s.Height), int64(s.Width), int64(s.Channels)}
}

// Len is the number of float32 values in one batched input.
func (s InputSpec) Len() int {
	return s.Channels * s.Height * s.Width
}

// DefaultInputSpec matches the Keras export: (1, 128, 128, 3).
var DefaultInputSpec = InputSpec{Layout: LayoutNHWC, Channels: 3, Height: InputSize, Width: InputSize}

// specFromDims derives the input spec from ONNX input dimensions. Dynamic
// dimensions (<= 0) are pinned to batch 1 and the fixed spatial size.
func specFromDims(dims []int64) (InputSpec, error) {
	if len(dims) != 4 {
		return InputSpec{}, fmt.Errorf("model input must be 4-D, got %v", dims)
	}
	d := make([]int64, 4)
	copy(d, dims)
	for i := 1; i < 4; i++ {
		if d[i] <= 0 {
			d[i] = -1
		}
	}

	var spec InputSpec
	switch {
	case isChannelDim(d[3]):
		spec = InputSpec{Layout: LayoutNHWC, Channels: int(d[3]), Height: int(d[1]), Width: int(d[2])}
	case isChannelDim(d[1]):
		spec = InputSpec{Layout: LayoutNCHW, Channels: int(d[1]), Height: int(d[2]), Width: int(d[3])}
	default:
		return InputSpec{}, fmt.Errorf("model input %v has no 1 or 3 channel axis", dims)
	}
	if spec.Height < 0 {
		spec.Height = InputSize
	}
	if spec.Width < 0 {
		spec.Width = InputSize
	}
	if spec.Height != InputSize || spec.Width != InputSize {
		return InputSpec{}, fmt.Errorf("model expects %dx%d input, service resizes to %dx%d",
			spec.Height, spec.Width, InputSize, InputSize)
	}
	return spec, nil
}

func isChannelDim(d int64) bool {
	return d == 1 || d == 3
}

// DecodeFile decodes a JPEG, PNG, GIF, BMP or WebP file.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Preprocess resizes img to the spec's spatial size with nearest-neighbour
// sampling and lays out the pixels scaled by 1/255.
func Preprocess(img image.Image, spec InputSpec) ([]float32, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	dst := resizeNearest(img, spec.Width, spec.Height)

	out := make([]float32, spec.Len())
	plane := spec.Width * spec.Height

	for y := 0; y < spec.Height; y++ {
		for x := 0; x < spec.Width; x++ {
			c := dst.NRGBAAt(x, y)
			var px [3]float32
			if spec.Channels == 1 {
				// ITU-R 601-2 luma, as used for "L" mode conversion.
				px[0] = float32((uint32(c.R)*299+uint32(c.G)*587+uint32(c.B)*114)/1000) / 255.0
			} else {
				px = [3]float32{float32(c.R) / 255.0, float32(c.G) / 255.0, float32(c.B) / 255.0}
			}

			idx := y*spec.Width + x
			for ch := 0; ch < spec.Channels; ch++ {
				if spec.Layout == LayoutNCHW {
					out[ch*plane+idx] = px[ch]
				} else {
					out[idx*spec.Channels+ch] = px[ch]
				}
			}
		}
	}
	return out, nil
}

// resizeNearest scales img to w×h keeping straight (non-premultiplied) RGB,
// so pixels with alpha < 255 keep their colour once alpha is dropped.
func resizeNearest(img image.Image, w, h int) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		return dst
	}

	sw, sh := bounds.Dx(), bounds.Dy()
	for y := 0; y < h; y++ {
		// Sample at the pixel centre, the same mapping draw.NearestNeighbor uses.
		sy := bounds.Min.Y + (2*y+1)*sh/(2*h)
		for x := 0; x < w; x++ {
			sx := bounds.Min.X + (2*x+1)*sw/(2*w)
			dst.SetNRGBA(x, y, straightAt(img, sx, sy))
		}
	}
	return dst
}

func straightAt(img image.Image, x, y int) color.NRGBA {
	switch src := img.(type) {
	case *image.NRGBA:
		return src.NRGBAAt(x, y)
	case *image.NRGBA64:
		c := src.NRGBA64At(x, y)
		return color.NRGBA{R: uint8(c.R >> 8), G: uint8(c.G >> 8), B: uint8(c.B >> 8), A: uint8(c.A >> 8)}
	}
	// Palette entries from PNG tRNS chunks are color.NRGBA and pass through
	// unchanged; other colour types are converted from premultiplied values.
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

// Classify applies the decision threshold to a raw model score.
func Classify(score float32) model.Prediction {
	return model.Prediction{
		IsPothole:  score > Threshold,
		Confidence: score,
	}
}
