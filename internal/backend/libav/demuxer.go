package libav

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/logger"
)

type demuxer struct {
	input       string
	readTimeout time.Duration
	parent      logger.Writer

	fc         *astiav.FormatContext
	ii         astiav.IOInterrupter
	pkt        *astiav.Packet
	videoIndex int
	audioIndex int
	enabled    map[int]struct{}
	metadata   av.Metadata
	closeOnce  sync.Once
}

// Log implements logger.Writer.
func (d *demuxer) Log(level logger.Level, format string, args ...any) {
	if d.parent != nil {
		d.parent.Log(level, "[backend libav] "+format, args...)
	}
}

func (d *demuxer) initialize(ctx context.Context) error {
	d.fc = astiav.AllocFormatContext()
	if d.fc == nil {
		return fmt.Errorf("AllocFormatContext() failed")
	}

	d.ii = d.fc.SetInterruptCallback()

	opts := astiav.NewDictionary()
	defer opts.Free()

	if d.readTimeout > 0 {
		opts.Set("rw_timeout", readTimeoutOption(d.readTimeout), 0) //nolint:errcheck
	}

	// interrupt blocking calls when the context is canceled
	openDone := make(chan struct{})
	defer close(openDone)
	go func() {
		select {
		case <-ctx.Done():
			d.ii.Interrupt()
		case <-openDone:
		}
	}()

	err := d.fc.OpenInput(d.input, nil, opts)
	if err != nil {
		d.fc.Free()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("unable to open '%s': %w", d.input, err)
	}

	err = d.fc.FindStreamInfo(nil)
	if err != nil {
		d.fc.CloseInput()
		d.fc.Free()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("unable to find stream info: %w", err)
	}

	d.videoIndex = bestVideoStream(d.fc.Streams())
	d.audioIndex = bestAudioStream(d.fc.Streams())

	if d.videoIndex < 0 && d.audioIndex < 0 {
		d.fc.CloseInput()
		d.fc.Free()
		return errNoStreams
	}

	d.readMetadata(d.fc.Metadata())

	d.pkt = astiav.AllocPacket()
	d.setEnabled(d.streamInfo(d.videoIndex), d.streamInfo(d.audioIndex))

	return nil
}

func (d *demuxer) readMetadata(dict *astiav.Dictionary) {
	if dict == nil {
		return
	}

	flags := astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix)
	var e *astiav.DictionaryEntry

	for {
		e = dict.Get("", e, flags)
		if e == nil {
			break
		}
		d.metadata.Set(e.Key(), e.Value())
	}
}

// bestVideoStream returns the video stream with the largest picture.
func bestVideoStream(streams []*astiav.Stream) int {
	best := -1
	bestArea := -1

	for _, s := range streams {
		par := s.CodecParameters()
		if par.MediaType() != astiav.MediaTypeVideo {
			continue
		}

		area := par.Width() * par.Height()
		if area > bestArea {
			best = s.Index()
			bestArea = area
		}
	}

	return best
}

// bestAudioStream returns the audio stream with the most channels.
func bestAudioStream(streams []*astiav.Stream) int {
	best := -1
	bestChannels := -1
	bestRate := -1

	for _, s := range streams {
		par := s.CodecParameters()
		if par.MediaType() != astiav.MediaTypeAudio {
			continue
		}

		channels := par.ChannelLayout().Channels()
		rate := par.SampleRate()
		if channels > bestChannels || (channels == bestChannels && rate > bestRate) {
			best = s.Index()
			bestChannels = channels
			bestRate = rate
		}
	}

	return best
}

func (d *demuxer) streamInfo(index int) *av.StreamInfo {
	if index < 0 {
		return nil
	}

	s := d.fc.Streams()[index]
	par := s.CodecParameters()

	info := &av.StreamInfo{
		Index:    index,
		Codec:    par.CodecID().String(),
		TimeBase: toRational(s.TimeBase()),
	}

	if par.MediaType() == astiav.MediaTypeVideo {
		info.Type = av.MediaTypeVideo
		info.Width = par.Width()
		info.Height = par.Height()
		info.FrameRate = toRational(s.AvgFrameRate())

		if md := s.Metadata(); md != nil {
			if e := md.Get("rotate", nil, astiav.NewDictionaryFlags()); e != nil {
				if v, err := strconv.ParseFloat(e.Value(), 64); err == nil {
					info.Rotation = v
				}
			}
		}
	} else {
		info.Type = av.MediaTypeAudio
		info.SampleRate = par.SampleRate()
		info.Channels = par.ChannelLayout().Channels()
	}

	return info
}

func (d *demuxer) setEnabled(streams ...*av.StreamInfo) {
	d.enabled = make(map[int]struct{})
	for _, s := range streams {
		if s != nil {
			d.enabled[s.Index] = struct{}{}
		}
	}
}

// Streams implements av.Demuxer.
func (d *demuxer) Streams() []*av.StreamInfo {
	var ret []*av.StreamInfo
	for i := range d.fc.Streams() {
		if i == d.videoIndex || i == d.audioIndex {
			ret = append(ret, d.streamInfo(i))
		}
	}
	return ret
}

// ReadPacket implements av.Demuxer.
func (d *demuxer) ReadPacket() (*av.Packet, error) {
	for {
		err := d.fc.ReadFrame(d.pkt)
		if err != nil {
			if errors.Is(err, astiav.ErrEof) {
				return nil, av.ErrEOF
			}
			return nil, err
		}

		if _, ok := d.enabled[d.pkt.StreamIndex()]; !ok {
			d.pkt.Unref()
			continue
		}

		pkt := &av.Packet{
			StreamIndex: d.pkt.StreamIndex(),
			PTS:         toTimestamp(d.pkt.Pts()),
			DTS:         toTimestamp(d.pkt.Dts()),
			Pos:         d.pkt.Pos(),
			Data:        append([]byte{}, d.pkt.Data()...),
		}
		d.pkt.Unref()

		return pkt, nil
	}
}

// Seek implements av.Demuxer.
func (d *demuxer) Seek(_ int64, target int64, _ int64) error {
	// with stream index -1, the timestamp is expressed in AV_TIME_BASE units,
	// that are the same as av.TimeBase.
	return d.fc.SeekFrame(-1, target, astiav.NewSeekFlags(astiav.SeekFlagBackward))
}

// Duration implements av.Demuxer.
func (d *demuxer) Duration() int64 {
	v := d.fc.Duration()
	if v <= 0 {
		return av.NoPTS
	}
	return toTimestamp(v)
}

// StartTime implements av.Demuxer.
func (d *demuxer) StartTime() int64 {
	return toTimestamp(d.fc.StartTime())
}

// Metadata implements av.Demuxer.
func (d *demuxer) Metadata() av.Metadata {
	return d.metadata
}

// Interrupt implements av.Demuxer.
func (d *demuxer) Interrupt() {
	d.ii.Interrupt()
}

// Close implements av.Demuxer.
func (d *demuxer) Close() {
	d.closeOnce.Do(func() {
		d.pkt.Free()
		d.fc.CloseInput()
		d.fc.Free()
	})
}
