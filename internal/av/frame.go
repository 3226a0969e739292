package av

import (
	"image"
)

// VideoFrame is a decoded video frame.
type VideoFrame struct {
	// presentation timestamp in stream time base, or NoPTS.
	PTS int64
	// decode timestamp of the packet that produced the frame, or NoPTS.
	PktDTS int64
	// number of additional half-frame durations the frame must be shown for.
	RepeatPict int
	Image      image.Image
}

// SampleFormat is an interleaved PCM sample format.
type SampleFormat int

// sample formats.
const (
	SampleFormatS16 SampleFormat = iota
	SampleFormatF32
)

// BytesPerSample returns the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	if f == SampleFormatF32 {
		return 4
	}
	return 2
}

// String implements fmt.Stringer.
func (f SampleFormat) String() string {
	if f == SampleFormatF32 {
		return "f32"
	}
	return "s16"
}

// AudioFrame is a block of decoded, interleaved samples.
type AudioFrame struct {
	PTS        int64
	Format     SampleFormat
	Channels   int
	SampleRate int
	NbSamples  int
	Data       []byte
}

// AudioSpec describes the format accepted by an audio sink.
type AudioSpec struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
	// samples per sink callback.
	Samples int
}

// FrameSize returns the size in bytes of one sample of all channels.
func (s AudioSpec) FrameSize() int {
	return s.Channels * s.Format.BytesPerSample()
}

// BytesPerSecond returns the byte rate.
func (s AudioSpec) BytesPerSecond() int {
	return s.SampleRate * s.FrameSize()
}
