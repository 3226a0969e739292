package player

import (
	"image"

	"golang.org/x/image/draw"
)

// scaler converts filtered frames into BGRA at the output size.
type scaler struct {
	outWidth  int
	outHeight int

	srcWidth  int
	srcHeight int
	dstWidth  int
	dstHeight int
}

func (s *scaler) outputSize(srcWidth int, srcHeight int) (int, int) {
	switch {
	case s.outWidth > 0 && s.outHeight > 0:
		return s.outWidth, s.outHeight

	case s.outWidth > 0:
		return s.outWidth, max(1, srcHeight*s.outWidth/srcWidth)

	case s.outHeight > 0:
		return max(1, srcWidth*s.outHeight/srcHeight), s.outHeight
	}
	return srcWidth, srcHeight
}

// ensure recomputes the destination size when the source size changes.
func (s *scaler) ensure(img image.Image) (int, int) {
	b := img.Bounds()
	if b.Dx() != s.srcWidth || b.Dy() != s.srcHeight {
		s.srcWidth = b.Dx()
		s.srcHeight = b.Dy()
		s.dstWidth, s.dstHeight = s.outputSize(s.srcWidth, s.srcHeight)
	}
	return s.dstWidth, s.dstHeight
}

// scale writes img into dst as BGRA. dst must be dstWidth*dstHeight*4 bytes long.
func (s *scaler) scale(img image.Image, dst []byte) {
	out := &image.RGBA{
		Pix:    dst,
		Stride: s.dstWidth * 4,
		Rect:   image.Rect(0, 0, s.dstWidth, s.dstHeight),
	}

	if s.dstWidth == s.srcWidth && s.dstHeight == s.srcHeight {
		draw.Draw(out, out.Rect, img, img.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(out, out.Rect, img, img.Bounds(), draw.Src, nil)
	}

	for i := 0; i < len(dst); i += 4 {
		dst[i], dst[i+2] = dst[i+2], dst[i]
	}
}
