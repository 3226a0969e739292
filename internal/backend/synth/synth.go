// Package synth contains a backend that generates a test pattern.
package synth

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"time"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/backend"
)

// Params are the parameters of a synthetic media.
// They are read from the URL query, for instance
// synth://?duration=2s&fps=25&width=320&height=240&audio=true
type Params struct {
	Duration   time.Duration
	FPS        int
	Width      int
	Height     int
	Video      bool
	Audio      bool
	SampleRate int
	Channels   int
	Rotation   float64
	Title      string
}

func (p *Params) setDefaults() {
	p.Duration = 10 * time.Second
	p.FPS = 25
	p.Width = 320
	p.Height = 240
	p.Video = true
	p.SampleRate = 48000
	p.Channels = 2
}

func (p *Params) unmarshal(u *backend.URL) error {
	p.setDefaults()

	q := u.Query()

	for key, parse := range map[string]func(string) error{
		"duration": func(v string) (err error) {
			p.Duration, err = time.ParseDuration(v)
			return
		},
		"fps": func(v string) (err error) {
			p.FPS, err = strconv.Atoi(v)
			return
		},
		"width": func(v string) (err error) {
			p.Width, err = strconv.Atoi(v)
			return
		},
		"height": func(v string) (err error) {
			p.Height, err = strconv.Atoi(v)
			return
		},
		"video": func(v string) (err error) {
			p.Video, err = strconv.ParseBool(v)
			return
		},
		"audio": func(v string) (err error) {
			p.Audio, err = strconv.ParseBool(v)
			return
		},
		"rate": func(v string) (err error) {
			p.SampleRate, err = strconv.Atoi(v)
			return
		},
		"channels": func(v string) (err error) {
			p.Channels, err = strconv.Atoi(v)
			return
		},
		"rotate": func(v string) (err error) {
			p.Rotation, err = strconv.ParseFloat(v, 64)
			return
		},
		"title": func(v string) error {
			p.Title = v
			return nil
		},
	} {
		if v := q.Get(key); v != "" {
			err := parse(v)
			if err != nil {
				return fmt.Errorf("invalid '%s': %w", key, err)
			}
		}
	}

	switch {
	case p.Duration <= 0:
		return fmt.Errorf("invalid duration")
	case p.FPS <= 0:
		return fmt.Errorf("invalid fps")
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("invalid size")
	case p.SampleRate <= 0 || p.Channels <= 0:
		return fmt.Errorf("invalid audio parameters")
	case !p.Video && !p.Audio:
		return fmt.Errorf("at least one of video and audio must be enabled")
	}

	return nil
}

// Backend is the synthetic backend.
type Backend struct{}

// Schemes implements backend.Backend.
func (Backend) Schemes() []string {
	return []string{"synth"}
}

// Open implements backend.Backend.
func (Backend) Open(_ context.Context, u *backend.URL, _ backend.Options) (*av.Source, error) {
	var p Params
	err := p.unmarshal(u)
	if err != nil {
		return nil, err
	}
	return NewSource(p), nil
}

// NewSource returns a source that generates the given media.
func NewSource(p Params) *av.Source {
	d := &demuxer{params: p}
	d.initialize()

	src := &av.Source{Demuxer: d}

	for _, st := range d.streams {
		switch st.Type {
		case av.MediaTypeVideo:
			src.VideoStream = st
			src.VideoDecoder = &videoDecoder{width: p.Width, height: p.Height}

		case av.MediaTypeAudio:
			src.AudioStream = st
			src.AudioDecoder = &audioDecoder{channels: p.Channels, sampleRate: p.SampleRate}
		}
	}

	return src
}

// FrameIndex extracts the frame index from the first pixel of a BGRA picture.
func FrameIndex(bgra [4]byte) int {
	return int(bgra[2]) | int(bgra[1])<<8
}

func frameColor(i int) color.RGBA {
	return color.RGBA{R: uint8(i), G: uint8(i >> 8), B: uint8(i * 7), A: 255}
}

type videoDecoder struct {
	width  int
	height int
}

// Decode implements av.VideoDecoder.
func (d *videoDecoder) Decode(pkt *av.Packet) ([]*av.VideoFrame, error) {
	if pkt.IsDrain() {
		return nil, nil
	}

	if len(pkt.Data) != 4 {
		return nil, fmt.Errorf("invalid packet")
	}
	i := int(binary.BigEndian.Uint32(pkt.Data))

	img := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	c := frameColor(i)

	// bar that moves across the picture
	barX := (i * 4) % d.width
	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			if x >= barX && x < barX+4 {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.SetRGBA(x, y, c)
			}
		}
	}
	img.SetRGBA(0, 0, c)

	return []*av.VideoFrame{{
		PTS:    pkt.PTS,
		PktDTS: pkt.DTS,
		Image:  img,
	}}, nil
}

// Flush implements av.VideoDecoder.
func (d *videoDecoder) Flush() {}

// Close implements av.VideoDecoder.
func (d *videoDecoder) Close() {}

type audioDecoder struct {
	channels   int
	sampleRate int
}

// Decode implements av.AudioDecoder.
func (d *audioDecoder) Decode(pkt *av.Packet) ([]*av.AudioFrame, error) {
	if pkt.IsDrain() {
		return nil, nil
	}

	if len(pkt.Data) != 8 {
		return nil, fmt.Errorf("invalid packet")
	}
	start := int64(binary.BigEndian.Uint32(pkt.Data))
	n := int(binary.BigEndian.Uint32(pkt.Data[4:]))

	buf := make([]byte, 0, n*d.channels*2)

	for i := 0; i < n; i++ {
		t := float64(start+int64(i)) / float64(d.sampleRate)
		v := int16(math.Sin(2*math.Pi*440*t) * 0.2 * math.MaxInt16)
		for c := 0; c < d.channels; c++ {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
		}
	}

	return []*av.AudioFrame{{
		PTS:        pkt.PTS,
		Format:     av.SampleFormatS16,
		Channels:   d.channels,
		SampleRate: d.sampleRate,
		NbSamples:  n,
		Data:       buf,
	}}, nil
}

// Flush implements av.AudioDecoder.
func (d *audioDecoder) Flush() {}

// HasDelay implements av.AudioDecoder.
func (d *audioDecoder) HasDelay() bool {
	return false
}

// Close implements av.AudioDecoder.
func (d *audioDecoder) Close() {}
