// Package framesink contains frame sinks.
package framesink

import (
	"errors"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
)

// ErrNoFrame is returned when no frame has been received yet.
var ErrNoFrame = errors.New("no frame received yet")

// DefaultJPEGQuality is the quality used by WriteJPEG when zero is passed.
const DefaultJPEGQuality = 85

// Snapshot is a frame sink that keeps the last displayed frame.
type Snapshot struct {
	mutex  sync.Mutex
	img    *image.NRGBA
	frames uint64
}

// OnFrame implements player.FrameSink.
func (s *Snapshot) OnFrame(buf []byte, width int, height int) {
	if buf == nil || len(buf) < width*height*4 {
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.img == nil || s.img.Rect.Dx() != width || s.img.Rect.Dy() != height {
		s.img = image.NewNRGBA(image.Rect(0, 0, width, height))
	}

	// BGRA -> RGBA
	pix := s.img.Pix
	for i := 0; i < width*height*4; i += 4 {
		pix[i] = buf[i+2]
		pix[i+1] = buf[i+1]
		pix[i+2] = buf[i]
		pix[i+3] = buf[i+3]
	}

	s.frames++
}

// Frames returns the number of received frames.
func (s *Snapshot) Frames() uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.frames
}

// Image returns a copy of the last frame.
func (s *Snapshot) Image() (image.Image, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.img == nil {
		return nil, ErrNoFrame
	}

	return imaging.Clone(s.img), nil
}

// WriteJPEG writes the last frame in JPEG format.
func (s *Snapshot) WriteJPEG(w io.Writer, quality int) error {
	img, err := s.Image()
	if err != nil {
		return err
	}

	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}
