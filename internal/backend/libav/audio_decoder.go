package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/bluenviron/avplay/internal/av"
)

type audioDecoder struct {
	par *astiav.CodecParameters

	cc    *astiav.CodecContext
	pkt   *astiav.Packet
	frame *astiav.Frame

	// conversion to interleaved S16
	swr       *astiav.SoftwareResampleContext
	swrFrame  *astiav.Frame
	swrFmt    astiav.SampleFormat
	swrRate   int
	swrLayout astiav.ChannelLayout
}

func (d *audioDecoder) initialize() error {
	var err error
	_, d.cc, err = openCodec(d.par)
	if err != nil {
		return err
	}

	d.pkt = astiav.AllocPacket()
	d.frame = astiav.AllocFrame()
	d.swrFrame = astiav.AllocFrame()
	return nil
}

// Close implements av.AudioDecoder.
func (d *audioDecoder) Close() {
	if d.swr != nil {
		d.swr.Free()
	}
	d.swrFrame.Free()
	d.frame.Free()
	d.pkt.Free()
	d.cc.Free()
}

// Flush implements av.AudioDecoder.
func (d *audioDecoder) Flush() {
	_, cc, err := openCodec(d.par)
	if err != nil {
		return
	}
	d.cc.Free()
	d.cc = cc
}

// HasDelay implements av.AudioDecoder.
// Draining is always requested; decoders without delay output nothing.
func (d *audioDecoder) HasDelay() bool {
	return true
}

// Decode implements av.AudioDecoder.
func (d *audioDecoder) Decode(pkt *av.Packet) ([]*av.AudioFrame, error) {
	err := sendPacket(d.cc, d.pkt, pkt)
	if err != nil {
		return nil, err
	}

	var frames []*av.AudioFrame

	for {
		err = d.cc.ReceiveFrame(d.frame)
		if err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return frames, nil
			}
			return frames, err
		}

		fr, err := d.convert(d.frame)
		d.frame.Unref()
		if err != nil {
			return frames, err
		}

		frames = append(frames, fr)
	}
}

func (d *audioDecoder) convert(src *astiav.Frame) (*av.AudioFrame, error) {
	channels := src.ChannelLayout().Channels()

	fr := &av.AudioFrame{
		PTS:        toTimestamp(src.Pts()),
		Format:     av.SampleFormatS16,
		Channels:   channels,
		SampleRate: src.SampleRate(),
		NbSamples:  src.NbSamples(),
	}
	size := fr.NbSamples * channels * fr.Format.BytesPerSample()

	if src.SampleFormat() == astiav.SampleFormatS16 {
		buf, err := src.Data().Bytes(0)
		if err != nil {
			return nil, err
		}
		if len(buf) < size {
			return nil, fmt.Errorf("audio buffer is too small")
		}
		fr.Data = append([]byte(nil), buf[:size]...)
		return fr, nil
	}

	err := d.ensureResampler(src)
	if err != nil {
		return nil, err
	}

	d.swrFrame.SetSampleFormat(astiav.SampleFormatS16)
	d.swrFrame.SetChannelLayout(src.ChannelLayout())
	d.swrFrame.SetSampleRate(src.SampleRate())

	err = d.swr.ConvertFrame(src, d.swrFrame)
	if err != nil {
		return nil, fmt.Errorf("ConvertFrame() failed: %w", err)
	}
	defer d.swrFrame.Unref()

	fr.NbSamples = d.swrFrame.NbSamples()
	size = fr.NbSamples * channels * fr.Format.BytesPerSample()

	buf, err := d.swrFrame.Data().Bytes(0)
	if err != nil {
		return nil, err
	}
	if len(buf) < size {
		return nil, fmt.Errorf("audio buffer is too small")
	}
	fr.Data = append([]byte(nil), buf[:size]...)

	return fr, nil
}

// ensureResampler recreates the resampler when the input parameters change.
func (d *audioDecoder) ensureResampler(src *astiav.Frame) error {
	if d.swr != nil && src.SampleFormat() == d.swrFmt &&
		src.SampleRate() == d.swrRate && src.ChannelLayout().Equal(d.swrLayout) {
		return nil
	}

	if d.swr != nil {
		d.swr.Free()
	}

	d.swr = astiav.AllocSoftwareResampleContext()
	if d.swr == nil {
		return fmt.Errorf("AllocSoftwareResampleContext() failed")
	}

	d.swrFmt = src.SampleFormat()
	d.swrRate = src.SampleRate()
	d.swrLayout = src.ChannelLayout()
	return nil
}
