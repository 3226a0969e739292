package player

import (
	"image"

	"github.com/disintegration/imaging"
)

type rotation int

const (
	rotationNone rotation = iota
	rotationFlip
	rotationClockwise
	rotationCounterClockwise
)

// rotationFromAngle maps the stream display rotation, in degrees, to a transform.
func rotationFromAngle(deg float64) rotation {
	switch {
	case deg >= 135 || deg <= -135:
		return rotationFlip
	case deg < -45:
		return rotationClockwise
	case deg > 45:
		return rotationCounterClockwise
	}
	return rotationNone
}

// filterChain normalizes the pixel format of decoded frames and applies rotation.
type filterChain struct {
	rot rotation
}

func newFilterChain(autorotate bool, angle float64) *filterChain {
	c := &filterChain{}
	if autorotate {
		c.rot = rotationFromAngle(angle)
	}
	return c
}

func (c *filterChain) apply(img image.Image) image.Image {
	switch c.rot {
	case rotationFlip:
		return imaging.FlipH(imaging.FlipV(img))

	case rotationClockwise:
		return imaging.Rotate270(img)

	case rotationCounterClockwise:
		return imaging.Rotate90(img)
	}

	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.YCbCr, *image.Gray:
		return img
	}
	return imaging.Clone(img)
}
