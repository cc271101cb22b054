package vision

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSpecFromDims(t *testing.T) {
	tests := []struct {
		name    string
		dims    []int64
		want    InputSpec
		wantErr bool
	}{
		{
			name: "keras nhwc with dynamic batch",
			dims: []int64{-1, 128, 128, 3},
			want: DefaultInputSpec,
		},
		{
			name: "nchw",
			dims: []int64{1, 3, 128, 128},
			want: InputSpec{Layout: LayoutNCHW, Channels: 3, Height: 128, Width: 128},
		},
		{
			name: "grayscale with dynamic spatial dims",
			dims: []int64{-1, -1, -1, 1},
			want: InputSpec{Layout: LayoutNHWC, Channels: 1, Height: 128, Width: 128},
		},
		{name: "wrong rank", dims: []int64{1, 128, 3}, wantErr: true},
		{name: "wrong size", dims: []int64{1, 224, 224, 3}, wantErr: true},
		{name: "no channel axis", dims: []int64{1, 4, 128, 128}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := specFromDims(tt.dims)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInputSpecShape(t *testing.T) {
	assert.Equal(t, []int64{1, 128, 128, 3}, DefaultInputSpec.Shape())
	nchw := InputSpec{Layout: LayoutNCHW, Channels: 3, Height: 128, Width: 128}
	assert.Equal(t, []int64{1, 3, 128, 128}, nchw.Shape())
	assert.Equal(t, 128*128*3, nchw.Len())
}

func TestPreprocessNHWC(t *testing.T) {
	img := solidImage(40, 25, color.NRGBA{R: 255, G: 51, B: 0, A: 255})

	out, err := Preprocess(img, DefaultInputSpec)
	require.NoError(t, err)
	require.Len(t, out, 128*128*3)

	for i := 0; i < len(out); i += 3 {
		assert.InDelta(t, 1.0, out[i], 1e-6)
		assert.InDelta(t, 0.2, out[i+1], 1e-6)
		assert.InDelta(t, 0.0, out[i+2], 1e-6)
	}
}

func TestPreprocessNCHW(t *testing.T) {
	img := solidImage(300, 300, color.NRGBA{R: 0, G: 255, B: 102, A: 255})
	spec := InputSpec{Layout: LayoutNCHW, Channels: 3, Height: 128, Width: 128}

	out, err := Preprocess(img, spec)
	require.NoError(t, err)

	plane := 128 * 128
	assert.InDelta(t, 0.0, out[0], 1e-6)
	assert.InDelta(t, 1.0, out[plane], 1e-6)
	assert.InDelta(t, 0.4, out[2*plane+plane-1], 1e-6)
}

func TestPreprocessGrayscale(t *testing.T) {
	img := solidImage(10, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	spec := InputSpec{Layout: LayoutNHWC, Channels: 1, Height: 128, Width: 128}

	out, err := Preprocess(img, spec)
	require.NoError(t, err)
	require.Len(t, out, 128*128)
	assert.InDelta(t, 1.0, out[0], 1e-6)
}

func TestPreprocessValuesInUnitRange(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(x + y), A: 255})
		}
	}

	out, err := Preprocess(img, DefaultInputSpec)
	require.NoError(t, err)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocessEmptyImage(t *testing.T) {
	_, err := Preprocess(image.NewNRGBA(image.Rect(0, 0, 0, 0)), DefaultInputSpec)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.True(t, Classify(0.93).IsPothole)
	assert.False(t, Classify(0.12).IsPothole)
	assert.False(t, Classify(0.5).IsPothole)

	p := Classify(0.73)
	assert.InDelta(t, 0.73, p.Confidence, 1e-6)
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "road.png")
	f, err := os.Create(pngPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solidImage(8, 6, color.Gray{Y: 90})))
	require.NoError(t, f.Close())

	img, err := DecodeFile(pngPath)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	junk := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not an image"), 0o644))
	_, err = DecodeFile(junk)
	assert.Error(t, err)

	_, err = DecodeFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestPreprocessKeepsColourOfTransparentPixels(t *testing.T) {
	img := solidImage(4, 4, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	out, err := Preprocess(img, DefaultInputSpec)
	require.NoError(t, err)

	for i := 0; i < len(out); i += 3 {
		assert.InDelta(t, 200.0/255.0, out[i], 1e-6)
		assert.InDelta(t, 100.0/255.0, out[i+1], 1e-6)
		assert.InDelta(t, 50.0/255.0, out[i+2], 1e-6)
	}
}

func TestPreprocessPartialAlphaNotQuantised(t *testing.T) {
	img := solidImage(3, 3, color.NRGBA{R: 201, G: 77, B: 13, A: 3})

	out, err := Preprocess(img, DefaultInputSpec)
	require.NoError(t, err)
	assert.InDelta(t, 201.0/255.0, out[0], 1e-6)
	assert.InDelta(t, 77.0/255.0, out[1], 1e-6)
	assert.InDelta(t, 13.0/255.0, out[2], 1e-6)
}

func TestPreprocessNRGBA64Transparent(t *testing.T) {
	img := image.NewNRGBA64(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA64(x, y, color.NRGBA64{R: 0xff00, G: 0x3300, B: 0x0000, A: 0})
		}
	}

	out, err := Preprocess(img, DefaultInputSpec)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0], 1e-6)
	assert.InDelta(t, 0.2, out[1], 1e-6)
	assert.InDelta(t, 0.0, out[2], 1e-6)
}

func TestPreprocessTransparentMatchesOpaqueSampling(t *testing.T) {
	quadrants := []color.NRGBA{
		{R: 255, A: 255}, {G: 255, A: 255},
		{B: 255, A: 255}, {R: 255, G: 255, A: 255},
	}
	opaque := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i, c := range quadrants {
		opaque.SetNRGBA(i%2, i/2, c)
		c.A = 128
		translucent.SetNRGBA(i%2, i/2, c)
	}

	want, err := Preprocess(opaque, DefaultInputSpec)
	require.NoError(t, err)
	got, err := Preprocess(translucent, DefaultInputSpec)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
