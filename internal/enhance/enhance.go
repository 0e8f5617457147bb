// Package enhance improves the legibility of a document frame after (or instead
// of) rectification.
//
// Each enhancement is a fixed chain of stages. If any stage fails the chain returns
// a copy of its input, so it always produces a frame.
package enhance

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/Mocca-flames/flame-pdf/internal/cvutil"
	"github.com/Mocca-flames/flame-pdf/internal/logging"

	"gocv.io/x/gocv"
)

// Profile holds the parameters of one enhancement chain.
type Profile struct {
	Name string

	// ClipLimit is the CLAHE clip limit applied to the lightness channel.
	ClipLimit float64
	// Denoise enables non-local means denoising after equalization.
	Denoise bool

	Contrast   float64
	Sharpness  float64
	Brightness float64
}

var (
	// StandardProfile is used on successfully rectified pages.
	StandardProfile = Profile{
		Name:       "standard",
		ClipLimit:  2.5,
		Contrast:   1.5,
		Sharpness:  2.0,
		Brightness: 1.1,
	}

	// AggressiveProfile is used on frames that could not be rectified.
	AggressiveProfile = Profile{
		Name:       "aggressive",
		ClipLimit:  3.5,
		Denoise:    true,
		Contrast:   1.8,
		Sharpness:  2.2,
		Brightness: 1.15,
	}
)

var errEmptyOutput = errors.New("stage produced an empty frame")

// Standard enhances a rectified page.
func Standard(frame gocv.Mat, log *slog.Logger) gocv.Mat {
	return Apply(frame, StandardProfile, log)
}

// Aggressive enhances an unrectified frame with stronger settings and denoising.
func Aggressive(frame gocv.Mat, log *slog.Logger) gocv.Mat {
	return Apply(frame, AggressiveProfile, log)
}

// Apply runs the profile's chain on frame and returns a new frame. frame is not
// modified.
func Apply(frame gocv.Mat, p Profile, log *slog.Logger) gocv.Mat {
	return run(frame, chain(p), logging.OrDiscard(log).With("profile", p.Name))
}

type step struct {
	name string
	fn   func(gocv.Mat) (gocv.Mat, error)
}

func chain(p Profile) []step {
	return []step{
		{"clahe", func(m gocv.Mat) (gocv.Mat, error) { return equalizeLightness(m, p.ClipLimit) }},
		{"denoise", func(m gocv.Mat) (gocv.Mat, error) {
			if !p.Denoise {
				return m.Clone(), nil
			}
			return denoise(m)
		}},
		{"contrast", func(m gocv.Mat) (gocv.Mat, error) { return Contrast(m, p.Contrast) }},
		{"sharpness", func(m gocv.Mat) (gocv.Mat, error) { return Sharpness(m, p.Sharpness) }},
		{"brightness", func(m gocv.Mat) (gocv.Mat, error) { return Brightness(m, p.Brightness) }},
	}
}

// run applies steps in order. The first failure discards all partial work and
// returns a clone of frame.
func run(frame gocv.Mat, steps []step, log *slog.Logger) gocv.Mat {
	cur := frame.Clone()
	for _, st := range steps {
		next, err := stage(st.name, cur, st.fn)
		cur.Close()
		if err != nil {
			log.Warn("enhancement failed, using input frame", "stage", st.name, "error", err)
			return frame.Clone()
		}
		cur = next
	}

	log.Debug("enhancement complete", "width", cur.Cols(), "height", cur.Rows())
	return cur
}

// stage runs fn on src. A panic or an empty result is reported as an error.
func stage(name string, src gocv.Mat, fn func(gocv.Mat) (gocv.Mat, error)) (out gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = gocv.NewMat(), fmt.Errorf("%s panicked: %v", name, r)
		}
	}()

	dst, err := fn(src)
	if err == nil && dst.Empty() {
		dst.Close()
		err = errEmptyOutput
	}
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%s: %w", name, err)
	}
	return dst, nil
}

// equalizeLightness applies CLAHE to the L channel in Lab space.
func equalizeLightness(src gocv.Mat, clipLimit float64) (gocv.Mat, error) {
	if src.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("clahe: want 3 channels, got %d", src.Channels())
	}

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(src, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	l := cvutil.CLAHE(channels[0], clipLimit)
	channels[0].Close()
	channels[0] = l

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(channels, &merged)

	dst := gocv.NewMat()
	gocv.CvtColor(merged, &dst, gocv.ColorLabToBGR)
	return dst, nil
}

func denoise(src gocv.Mat) (gocv.Mat, error) {
	dst := gocv.NewMat()
	gocv.FastNlMeansDenoisingColoredWithParams(src, &dst, 10, 10, 7, 21)
	return dst, nil
}

// Contrast scales the distance of every pixel from the frame's mean gray level by
// factor. A factor of 1 returns the frame unchanged.
func Contrast(src gocv.Mat, factor float64) (gocv.Mat, error) {
	gray := cvutil.Gray(src)
	mean := float64(int(gray.Mean().Val1 + 0.5))
	gray.Close()

	return blendConstant(src, factor, (1-factor)*mean), nil
}

// Brightness multiplies every pixel by factor.
func Brightness(src gocv.Mat, factor float64) (gocv.Mat, error) {
	return blendConstant(src, factor, 0), nil
}

// Sharpness moves the frame away from a smoothed copy of itself by factor. A
// factor of 1 returns the frame unchanged, larger values sharpen.
func Sharpness(src gocv.Mat, factor float64) (gocv.Mat, error) {
	kernel := smoothKernel()
	defer kernel.Close()

	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.Filter2D(src, &smooth, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderReplicate)

	dst := gocv.NewMat()
	gocv.AddWeighted(src, factor, smooth, 1-factor, 0, &dst)
	return dst, nil
}

// blendConstant computes saturate(factor*src + offset).
func blendConstant(src gocv.Mat, factor, offset float64) gocv.Mat {
	dst := gocv.NewMat()
	gocv.AddWeighted(src, factor, src, 0, offset, &dst)
	return dst
}

// smoothKernel is the 3x3 low-pass filter (1 1 1 / 1 5 1 / 1 1 1) / 13.
func smoothKernel() gocv.Mat {
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			k.SetFloatAt(r, c, 1.0/13)
		}
	}
	k.SetFloatAt(1, 1, 5.0/13)
	return k
}
