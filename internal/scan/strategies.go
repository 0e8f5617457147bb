package scan

import (
	"image"
	"log/slog"

	"github.com/Mocca-flames/flame-pdf/internal/cvutil"
	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/pkg/geometry"

	"gocv.io/x/gocv"
)

// WorkingHeight is the height every strategy downsamples to before detection.
const WorkingHeight = 800

// cannyPair is a low/high hysteresis threshold pair for the Canny detector.
type cannyPair struct {
	low, high float32
}

// edgeSweep is tried in order for every denoised variant in EdgeDetection.
var edgeSweep = []cannyPair{
	{30, 100},
	{50, 150},
	{75, 200},
	{100, 250},
}

// defaultCanny is used by the strategies that run a single edge pass.
var defaultCanny = cannyPair{50, 150}

// workingFrame is a frame downsampled to WorkingHeight.
type workingFrame struct {
	mat   gocv.Mat
	size  geometry.Size
	ratio float64
}

func newWorkingFrame(frame gocv.Mat) workingFrame {
	mat, ratio := cvutil.ResizeToHeight(frame, WorkingHeight)
	return workingFrame{
		mat:   mat,
		size:  geometry.Size{Width: mat.Cols(), Height: mat.Rows()},
		ratio: ratio,
	}
}

func (w workingFrame) Close() {
	w.mat.Close()
}

// find runs the contour selector on a binary map of this working frame.
func (w workingFrame) find(binary gocv.Mat, log *slog.Logger) (geometry.Quad, bool) {
	return selectQuad(binary, w.size, w.ratio, log)
}

// EdgeDetection denoises the intensity image three ways (bilateral, Gaussian,
// median) and sweeps four Canny threshold pairs over each, closing small gaps in
// every edge map with a 3x3 dilate x2 / erode x1 before contour selection.
func EdgeDetection(frame gocv.Mat, log *slog.Logger) (geometry.Quad, bool) {
	log = logging.OrDiscard(log)
	work := newWorkingFrame(frame)
	defer work.Close()

	gray := cvutil.Gray(work.mat)
	defer gray.Close()

	bilateral := gocv.NewMat()
	defer bilateral.Close()
	gocv.BilateralFilter(gray, &bilateral, 9, 75, 75)

	gaussian := gocv.NewMat()
	defer gaussian.Close()
	gocv.GaussianBlur(gray, &gaussian, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	median := gocv.NewMat()
	defer median.Close()
	gocv.MedianBlur(gray, &median, 5)

	for _, denoised := range []gocv.Mat{bilateral, gaussian, median} {
		for _, th := range edgeSweep {
			if q, ok := edgeAttempt(work, denoised, th, log); ok {
				log.Debug("edge detection matched", "low", th.low, "high", th.high)
				return q, true
			}
		}
	}
	return geometry.Quad{}, false
}

func edgeAttempt(work workingFrame, denoised gocv.Mat, th cannyPair, log *slog.Logger) (geometry.Quad, bool) {
	edges := cvutil.Canny(denoised, th.low, th.high)
	defer edges.Close()

	thick := cvutil.Dilate(edges, 3, 2)
	defer thick.Close()

	closed := cvutil.Erode(thick, 3, 1)
	defer closed.Close()

	return work.find(closed, log)
}

// AdaptiveThreshold equalizes the intensity image with CLAHE and binarizes it with
// Gaussian and then mean local thresholds (11x11 block, offset 2). Each binary map
// is closed (5x5 x2), edge-detected and dilated before contour selection.
func AdaptiveThreshold(frame gocv.Mat, log *slog.Logger) (geometry.Quad, bool) {
	log = logging.OrDiscard(log)
	work := newWorkingFrame(frame)
	defer work.Close()

	gray := cvutil.Gray(work.mat)
	defer gray.Close()

	equalized := cvutil.CLAHE(gray, 2.0)
	defer equalized.Close()

	methods := []gocv.AdaptiveThresholdType{
		gocv.AdaptiveThresholdGaussian,
		gocv.AdaptiveThresholdMean,
	}
	for _, method := range methods {
		if q, ok := adaptiveAttempt(work, equalized, method, log); ok {
			return q, true
		}
	}
	return geometry.Quad{}, false
}

func adaptiveAttempt(work workingFrame, equalized gocv.Mat, method gocv.AdaptiveThresholdType, log *slog.Logger) (geometry.Quad, bool) {
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(equalized, &thresh, 255, method, gocv.ThresholdBinary, 11, 2)

	closed := cvutil.Close(thresh, 5, 2)
	defer closed.Close()

	edges := cvutil.Canny(closed, defaultCanny.low, defaultCanny.high)
	defer edges.Close()

	dilated := cvutil.Dilate(edges, 3, 2)
	defer dilated.Close()

	return work.find(dilated, log)
}

// ColorSegmentation separates the page from its background by lightness: the L
// channel of Lab is Otsu-thresholded, closed (7x7 x3), edge-detected and dilated.
func ColorSegmentation(frame gocv.Mat, log *slog.Logger) (geometry.Quad, bool) {
	log = logging.OrDiscard(log)
	work := newWorkingFrame(frame)
	defer work.Close()

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(work.mat, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer closeAll(channels)

	thresh := cvutil.Otsu(channels[0])
	defer thresh.Close()

	closed := cvutil.Close(thresh, 7, 3)
	defer closed.Close()

	edges := cvutil.Canny(closed, defaultCanny.low, defaultCanny.high)
	defer edges.Close()

	dilated := cvutil.Dilate(edges, 3, 2)
	defer dilated.Close()

	return work.find(dilated, log)
}

// Morphological uses a morphological gradient as the edge signal: CLAHE (clip 3.0),
// bilateral smoothing, 5x5 gradient, Otsu, then a 7x7 x3 closing.
func Morphological(frame gocv.Mat, log *slog.Logger) (geometry.Quad, bool) {
	log = logging.OrDiscard(log)
	work := newWorkingFrame(frame)
	defer work.Close()

	gray := cvutil.Gray(work.mat)
	defer gray.Close()

	equalized := cvutil.CLAHE(gray, 3.0)
	defer equalized.Close()

	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.BilateralFilter(equalized, &filtered, 9, 75, 75)

	gradient := cvutil.Gradient(filtered, 5)
	defer gradient.Close()

	thresh := cvutil.Otsu(gradient)
	defer thresh.Close()

	closed := cvutil.Close(thresh, 7, 3)
	defer closed.Close()

	return work.find(closed, log)
}

func closeAll(mats []gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}
