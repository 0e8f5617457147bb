package enhance

import (
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func uniform(v float64, w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), h, w, gocv.MatTypeCV8UC3)
}

// split returns a frame whose left columns are left and the rest right.
func split(t *testing.T, w, h, leftCols int, left, right uint8) gocv.Mat {
	t.Helper()
	data := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := right
			if x < leftCols {
				v = left
			}
			i := (y*w + x) * 3
			data[i], data[i+1], data[i+2] = v, v, v
		}
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	return m
}

// textPage draws dark strokes on a light page.
func textPage() gocv.Mat {
	m := uniform(200, 300, 200)
	for y := 30; y < 180; y += 20 {
		gocv.Rectangle(&m, image.Rect(20, y, 280, y+6), color.RGBA{R: 60, G: 60, B: 60}, -1)
	}
	return m
}

func stddev(t *testing.T, m gocv.Mat) float64 {
	t.Helper()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)

	mean, dev := gocv.NewMat(), gocv.NewMat()
	defer mean.Close()
	defer dev.Close()
	gocv.MeanStdDev(gray, &mean, &dev)
	return dev.GetDoubleAt(0, 0)
}

func TestProfilesKeepSizeAndInput(t *testing.T) {
	for _, run := range []func(gocv.Mat, *slog.Logger) gocv.Mat{Standard, Aggressive} {
		src := textPage()
		before := src.Clone()

		out := run(src, quietLogger())

		assert.Equal(t, src.Rows(), out.Rows())
		assert.Equal(t, src.Cols(), out.Cols())
		assert.Equal(t, gocv.MatTypeCV8UC3, out.Type())

		diff := gocv.NewMat()
		gocv.AbsDiff(src, before, &diff)
		gray := gocv.NewMat()
		gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
		assert.Zero(t, gocv.CountNonZero(gray), "input modified")

		for _, m := range []gocv.Mat{src, before, out, diff, gray} {
			m.Close()
		}
	}
}

func TestEnhancementIncreasesContrast(t *testing.T) {
	src := textPage()
	defer src.Close()

	out := Standard(src, nil)
	defer out.Close()

	assert.Greater(t, stddev(t, out), stddev(t, src))
}

func TestContrast(t *testing.T) {
	src := split(t, 4, 4, 2, 200, 100)
	defer src.Close()

	// mean gray is 150: 100 -> 150 + 1.5*(100-150) = 75, 200 -> 225
	out, err := Contrast(src, 1.5)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, uint8(225), out.GetVecbAt(0, 0)[0])
	assert.Equal(t, uint8(75), out.GetVecbAt(0, 3)[0])
}

func TestContrastIdentity(t *testing.T) {
	src := textPage()
	defer src.Close()

	out, err := Contrast(src, 1)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, src.ToBytes(), out.ToBytes())
}

func TestBrightness(t *testing.T) {
	src := uniform(100, 3, 3)
	defer src.Close()

	out, err := Brightness(src, 1.1)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, uint8(110), out.GetVecbAt(1, 1)[0])

	bright := uniform(250, 3, 3)
	defer bright.Close()
	sat, err := Brightness(bright, 1.15)
	require.NoError(t, err)
	defer sat.Close()
	assert.Equal(t, uint8(255), sat.GetVecbAt(1, 1)[0])
}

func TestSharpnessLeavesFlatRegions(t *testing.T) {
	src := uniform(120, 8, 8)
	defer src.Close()

	out, err := Sharpness(src, 2.0)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, src.ToBytes(), out.ToBytes())
}

func TestSharpnessAccentuatesEdges(t *testing.T) {
	src := split(t, 10, 10, 5, 100, 200)
	defer src.Close()

	out, err := Sharpness(src, 2.0)
	require.NoError(t, err)
	defer out.Close()

	assert.Less(t, out.GetVecbAt(5, 4)[0], uint8(100))
	assert.Greater(t, out.GetVecbAt(5, 5)[0], uint8(200))
}

func TestStageReportsFailures(t *testing.T) {
	src := uniform(42, 5, 5)
	defer src.Close()

	failing := func(gocv.Mat) (gocv.Mat, error) { return gocv.NewMat(), errors.New("boom") }
	empty := func(gocv.Mat) (gocv.Mat, error) { return gocv.NewMat(), nil }
	panicking := func(gocv.Mat) (gocv.Mat, error) { panic("boom") }

	for name, fn := range map[string]func(gocv.Mat) (gocv.Mat, error){
		"error": failing, "empty": empty, "panic": panicking,
	} {
		t.Run(name, func(t *testing.T) {
			out, err := stage(name, src, fn)
			defer out.Close()
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestFailingStageDiscardsEarlierStages(t *testing.T) {
	src := textPage()
	defer src.Close()

	broken := step{"broken", func(gocv.Mat) (gocv.Mat, error) { return gocv.NewMat(), errors.New("boom") }}
	for name, steps := range map[string][]step{
		"last":  append(chain(StandardProfile), broken),
		"first": append([]step{broken}, chain(StandardProfile)...),
	} {
		t.Run(name, func(t *testing.T) {
			out := run(src, steps, quietLogger())
			defer out.Close()
			assert.Equal(t, src.ToBytes(), out.ToBytes())
		})
	}
}

func TestApplyReturnsInputWhenChainFails(t *testing.T) {
	// Lightness equalization needs three channels, so a gray frame fails the first stage.
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 0, 0, 0), 20, 30, gocv.MatTypeCV8U)
	defer gray.Close()

	out := Aggressive(gray, quietLogger())
	defer out.Close()

	assert.Equal(t, gocv.MatTypeCV8U, out.Type())
	assert.Equal(t, gray.ToBytes(), out.ToBytes())
}

func TestEqualizeLightnessNeedsColor(t *testing.T) {
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 0, 0, 0), 20, 20, gocv.MatTypeCV8U)
	defer gray.Close()

	_, err := equalizeLightness(gray, 2.5)
	assert.Error(t, err)
}
