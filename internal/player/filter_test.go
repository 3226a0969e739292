package player

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRotationFromAngle(t *testing.T) {
	for _, ca := range []struct {
		angle float64
		rot   rotation
	}{
		{-180, rotationFlip},
		{-90, rotationClockwise},
		{0, rotationNone},
		{90, rotationCounterClockwise},
		{180, rotationFlip},
	} {
		require.Equal(t, ca.rot, rotationFromAngle(ca.angle), "angle %v", ca.angle)
	}
}

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	return img
}

func TestFilterChainRotation(t *testing.T) {
	out := newFilterChain(true, -90).apply(testImage())
	require.Equal(t, image.Rect(0, 0, 2, 4), out.Bounds())
	r, _, _, _ := out.At(1, 0).RGBA()
	require.Equal(t, uint32(0xffff), r)

	out = newFilterChain(true, 90).apply(testImage())
	require.Equal(t, image.Rect(0, 0, 2, 4), out.Bounds())
	r, _, _, _ = out.At(0, 3).RGBA()
	require.Equal(t, uint32(0xffff), r)

	out = newFilterChain(true, 180).apply(testImage())
	r, _, _, _ = out.At(3, 1).RGBA()
	require.Equal(t, uint32(0xffff), r)

	out = newFilterChain(false, 90).apply(testImage())
	require.Equal(t, image.Rect(0, 0, 4, 2), out.Bounds())
}

func TestScalerBGRA(t *testing.T) {
	s := &scaler{}
	img := testImage()
	w, h := s.ensure(img)
	require.Equal(t, 4, w)
	require.Equal(t, 2, h)

	buf := make([]byte, w*h*4)
	s.scale(img, buf)
	require.Equal(t, []byte{0, 0, 255, 255}, buf[:4])
}

func TestScalerOutputSize(t *testing.T) {
	s := &scaler{outWidth: 2}
	w, h := s.ensure(testImage())
	require.Equal(t, 2, w)
	require.Equal(t, 1, h)

	buf := make([]byte, w*h*4)
	s.scale(testImage(), buf)

	s = &scaler{outWidth: 8, outHeight: 8}
	w, h = s.ensure(testImage())
	require.Equal(t, 8, w)
	require.Equal(t, 8, h)
}
