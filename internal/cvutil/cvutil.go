// Package cvutil wraps the gocv calls shared by the scanner, rectifier and
// enhancer. Every helper treats its input as read-only and returns a newly
// allocated Mat that the caller must Close.
package cvutil

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// Gray converts a BGR frame to a single intensity channel.
func Gray(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// ResizeToHeight scales src to the given height, keeping the aspect ratio. It also
// returns the ratio original/working used to map coordinates back.
func ResizeToHeight(src gocv.Mat, height int) (gocv.Mat, float64) {
	ratio := float64(src.Rows()) / float64(height)
	width := int(float64(src.Cols()) / ratio)
	if width < 1 {
		width = 1
	}

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return dst, ratio
}

// CLAHE applies contrast limited adaptive histogram equalization on an 8x8 tile grid.
func CLAHE(gray gocv.Mat, clipLimit float64) gocv.Mat {
	clahe := gocv.NewCLAHEWithParams(clipLimit, image.Pt(8, 8))
	defer clahe.Close()

	dst := gocv.NewMat()
	clahe.Apply(gray, &dst)
	return dst
}

// Dilate runs a square-kernel dilation the given number of times.
func Dilate(src gocv.Mat, ksize, iterations int) gocv.Mat {
	return repeat(src, ksize, iterations, gocv.Dilate)
}

// Erode runs a square-kernel erosion the given number of times.
func Erode(src gocv.Mat, ksize, iterations int) gocv.Mat {
	return repeat(src, ksize, iterations, gocv.Erode)
}

// Close performs a morphological closing: iterations dilations followed by the
// same number of erosions, matching OpenCV's iterated MORPH_CLOSE.
func Close(src gocv.Mat, ksize, iterations int) gocv.Mat {
	dilated := Dilate(src, ksize, iterations)
	defer dilated.Close()
	return Erode(dilated, ksize, iterations)
}

// Gradient returns dilation minus erosion with a rectangular kernel.
func Gradient(src gocv.Mat, ksize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(ksize, ksize))
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.MorphologyEx(src, &dst, gocv.MorphGradient, kernel)
	return dst
}

// Otsu binarizes a single-channel image with an automatically chosen threshold.
func Otsu(gray gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Threshold(gray, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return dst
}

// Canny runs the Canny edge detector.
func Canny(gray gocv.Mat, low, high float32) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Canny(gray, &dst, low, high)
	return dst
}

func repeat(src gocv.Mat, ksize, iterations int, op func(gocv.Mat, *gocv.Mat, gocv.Mat)) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(ksize, ksize))
	defer kernel.Close()

	dst := src.Clone()
	for i := 0; i < iterations; i++ {
		op(dst, &dst, kernel)
	}
	return dst
}

// ImageToMat converts a Go image to an 8-bit BGR Mat. Alpha is dropped.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("empty image %dx%d", w, h)
	}

	data := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		out := data[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			out[x*3+0] = row[x*4+2]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+0]
		}
	}

	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
}

// MatToImage converts a BGR Mat back to a Go image.
func MatToImage(m gocv.Mat) (image.Image, error) {
	if m.Empty() {
		return nil, fmt.Errorf("empty mat")
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat: %w", err)
	}
	return img, nil
}
