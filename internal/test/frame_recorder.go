package test

import (
	"sync"
)

// RecordedFrame is a frame received by FrameRecorder.
type RecordedFrame struct {
	Width  int
	Height int
	// first pixel, BGRA
	FirstPixel [4]byte
}

// FrameRecorder is a frame sink that records received frames.
type FrameRecorder struct {
	mutex  sync.Mutex
	frames []RecordedFrame
	empty  int
}

// OnFrame implements player.FrameSink.
func (r *FrameRecorder) OnFrame(buf []byte, width int, height int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if buf == nil {
		r.empty++
		return
	}

	f := RecordedFrame{Width: width, Height: height}
	copy(f.FirstPixel[:], buf)
	r.frames = append(r.frames, f)
}

// Frames returns recorded frames.
func (r *FrameRecorder) Frames() []RecordedFrame {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]RecordedFrame(nil), r.frames...)
}

// EmptyRefreshes returns how many times the sink was called without a picture.
func (r *FrameRecorder) EmptyRefreshes() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.empty
}
