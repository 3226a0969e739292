// Package av contains the media data model shared by the player and the backends.
package av

import (
	"math"
)

// NoPTS marks a missing timestamp.
const NoPTS int64 = math.MinInt64

// TimeBase is the unit of demuxer-level positions (microseconds).
const TimeBase = 1000000

// Rational is a rational number.
type Rational struct {
	Num int
	Den int
}

// Float64 returns the value of the rational.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// MediaType is the type of an elementary stream.
type MediaType int

// media types.
const (
	MediaTypeVideo MediaType = iota
	MediaTypeAudio
)

// String implements fmt.Stringer.
func (t MediaType) String() string {
	switch t {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	}
	return "unknown"
}

// StreamInfo describes an elementary stream.
type StreamInfo struct {
	Index    int
	Type     MediaType
	Codec    string
	TimeBase Rational

	// video
	FrameRate Rational
	Width     int
	Height    int
	Rotation  float64

	// audio
	SampleRate int
	Channels   int
}

// Packet is a compressed unit.
// A packet with nil Data is a drain packet.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	Pos         int64
	Data        []byte
}

// Size returns the payload size.
func (p *Packet) Size() int {
	return len(p.Data)
}

// IsDrain returns true if the packet asks the decoder to output buffered frames.
func (p *Packet) IsDrain() bool {
	return p.Data == nil
}
