package pipeline

import (
	"bytes"
	"image"

	"github.com/Mocca-flames/flame-pdf/internal/cvutil"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	// Registers the webp decoder with image.Decode; imaging already pulls in bmp and tiff.
	_ "golang.org/x/image/webp"
)

// decode turns encoded bytes into an upright image and its BGR frame. EXIF
// orientation is applied, so phone photos come out the way they were viewed.
func decode(data []byte) (image.Image, gocv.Mat, error) {
	if len(data) == 0 {
		return nil, gocv.NewMat(), &DecodeError{Err: ErrEmptyInput}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, gocv.NewMat(), &DecodeError{Err: err}
	}

	frame, err := cvutil.ImageToMat(img)
	if err != nil {
		return nil, gocv.NewMat(), &DecodeError{Err: err}
	}
	return img, frame, nil
}
