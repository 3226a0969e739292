package synth

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/bluenviron/avplay/internal/av"
)

const audioSamplesPerPacket = 1024

var errInterrupted = fmt.Errorf("interrupted")

type demuxer struct {
	params Params

	streams      []*av.StreamInfo
	videoIndex   int
	audioIndex   int
	videoFrames  int64
	audioSamples int64
	nextFrame    int64
	nextSample   int64
	interrupted  atomic.Bool
}

func (d *demuxer) initialize() {
	d.videoIndex = -1
	d.audioIndex = -1

	if d.params.Video {
		d.videoIndex = len(d.streams)
		d.videoFrames = int64(d.params.Duration.Seconds() * float64(d.params.FPS))
		d.streams = append(d.streams, &av.StreamInfo{
			Index:     d.videoIndex,
			Type:      av.MediaTypeVideo,
			Codec:     "rawvideo",
			TimeBase:  av.Rational{Num: 1, Den: d.params.FPS},
			FrameRate: av.Rational{Num: d.params.FPS, Den: 1},
			Width:     d.params.Width,
			Height:    d.params.Height,
			Rotation:  d.params.Rotation,
		})
	}

	if d.params.Audio {
		d.audioIndex = len(d.streams)
		d.audioSamples = int64(d.params.Duration.Seconds() * float64(d.params.SampleRate))
		d.streams = append(d.streams, &av.StreamInfo{
			Index:      d.audioIndex,
			Type:       av.MediaTypeAudio,
			Codec:      "pcm_s16le",
			TimeBase:   av.Rational{Num: 1, Den: d.params.SampleRate},
			SampleRate: d.params.SampleRate,
			Channels:   d.params.Channels,
		})
	}
}

// Streams implements av.Demuxer.
func (d *demuxer) Streams() []*av.StreamInfo {
	return d.streams
}

func (d *demuxer) videoTime() float64 {
	if d.nextFrame >= d.videoFrames {
		return -1
	}
	return float64(d.nextFrame) / float64(d.params.FPS)
}

func (d *demuxer) audioTime() float64 {
	if d.nextSample >= d.audioSamples {
		return -1
	}
	return float64(d.nextSample) / float64(d.params.SampleRate)
}

// ReadPacket implements av.Demuxer.
// Packets of the two streams are interleaved by timestamp.
func (d *demuxer) ReadPacket() (*av.Packet, error) {
	if d.interrupted.Load() {
		return nil, errInterrupted
	}

	vt := -1.0
	if d.params.Video {
		vt = d.videoTime()
	}

	at := -1.0
	if d.params.Audio {
		at = d.audioTime()
	}

	switch {
	case vt < 0 && at < 0:
		return nil, av.ErrEOF

	case vt >= 0 && (at < 0 || vt <= at):
		pkt := &av.Packet{
			StreamIndex: d.videoIndex,
			PTS:         d.nextFrame,
			DTS:         d.nextFrame,
			Pos:         d.nextFrame,
			Data:        binary.BigEndian.AppendUint32(nil, uint32(d.nextFrame)),
		}
		d.nextFrame++
		return pkt, nil
	}

	n := min(int64(audioSamplesPerPacket), d.audioSamples-d.nextSample)
	data := binary.BigEndian.AppendUint32(nil, uint32(d.nextSample))
	data = binary.BigEndian.AppendUint32(data, uint32(n))

	pkt := &av.Packet{
		StreamIndex: d.audioIndex,
		PTS:         d.nextSample,
		DTS:         d.nextSample,
		Pos:         -1,
		Data:        data,
	}
	d.nextSample += n
	return pkt, nil
}

// Seek implements av.Demuxer.
// The position becomes the first frame whose timestamp is not lower than target,
// constrained into [min, max].
func (d *demuxer) Seek(minPos int64, target int64, maxPos int64) error {
	pos := max(target, minPos)
	pos = min(pos, maxPos)
	if pos < 0 {
		pos = 0
	}

	duration := d.params.Duration.Microseconds()
	if pos > duration {
		return fmt.Errorf("position is out of range")
	}

	if d.params.Video {
		fps := int64(d.params.FPS)
		d.nextFrame = (pos*fps + av.TimeBase - 1) / av.TimeBase
	}

	if d.params.Audio {
		rate := int64(d.params.SampleRate)
		d.nextSample = (pos*rate + av.TimeBase - 1) / av.TimeBase
		d.nextSample -= d.nextSample % audioSamplesPerPacket
	}

	return nil
}

// Duration implements av.Demuxer.
func (d *demuxer) Duration() int64 {
	return d.params.Duration.Microseconds()
}

// StartTime implements av.Demuxer.
func (d *demuxer) StartTime() int64 {
	return 0
}

// Metadata implements av.Demuxer.
func (d *demuxer) Metadata() av.Metadata {
	return av.Metadata{
		Title:    d.params.Title,
		Comments: "synthetic test pattern",
	}
}

// Interrupt implements av.Demuxer.
func (d *demuxer) Interrupt() {
	d.interrupted.Store(true)
}

// Close implements av.Demuxer.
func (d *demuxer) Close() {}
