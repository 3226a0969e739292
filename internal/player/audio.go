package player

import (
	"errors"

	"github.com/bluenviron/avplay/internal/av"
)

var (
	errPaused   = errors.New("paused")
	errUnderrun = errors.New("audio queue underrun")
)

func (p *Player) openAudio() error {
	st := p.Source.AudioStream

	channels := st.Channels
	if channels <= 0 || channels > 2 {
		channels = 2
	}

	wanted := av.AudioSpec{
		SampleRate: st.SampleRate,
		Channels:   channels,
		Format:     av.SampleFormatS16,
		Samples:    p.Conf.AudioBufferSamples,
	}

	spec, err := p.AudioSink.Open(wanted)
	if err != nil {
		return err
	}

	if spec.Samples == 0 {
		spec.Samples = wanted.Samples
	}

	p.audioSpec = spec
	p.audioTimeBase = st.TimeBase.Float64()
	p.audioSilence = make([]byte, spec.Samples*spec.FrameSize())
	p.resampler = &resampler{out: spec}
	p.audioDiff = newAudioDiffFilter(spec.Samples, spec.SampleRate, p.noSync)

	p.clocks.audioBytesPerSec = float64(spec.BytesPerSecond())
	p.clocks.audioLatency = p.AudioSink.Latency

	return nil
}

// fillAudio is called by the audio sink when it needs samples.
func (p *Player) fillAudio(stream []byte) {
	for len(stream) > 0 {
		if p.audioBufIndex >= len(p.audioBuf) {
			buf, err := p.decodeAudioFrame()
			if err != nil {
				p.audioBuf = p.audioSilence
			} else {
				p.audioBuf = p.synchronizeAudio(buf)
			}
			p.audioBufIndex = 0
		}

		n := copy(stream, p.audioBuf[p.audioBufIndex:])
		stream = stream[n:]
		p.audioBufIndex += n
	}

	p.clocks.setAudio(p.audioPTS, len(p.audioBuf)-p.audioBufIndex)
}

// decodeAudioFrame returns the next block of samples in the sink format.
func (p *Player) decodeAudioFrame() ([]byte, error) {
	for {
		if len(p.audioFrames) != 0 {
			frame := p.audioFrames[0]
			p.audioFrames = p.audioFrames[1:]

			buf, err := p.resampler.convert(frame)
			if err != nil {
				p.decodeErrors.Increase()
				continue
			}

			if len(buf) == 0 {
				continue
			}

			p.audioPTS += float64(len(buf)) / float64(p.audioSpec.BytesPerSecond())
			return buf, nil
		}

		if p.clocks.isPaused() {
			return nil, errPaused
		}

		pkt, res := p.audioq.get(false)
		switch res {
		case getAborted:
			return nil, errQueueAborted
		case getWouldBlock:
			return nil, errUnderrun
		}

		if isFlushPacket(pkt) {
			p.Source.AudioDecoder.Flush()
			p.resampler.reset()
			p.audioq.done()
			continue
		}

		if pkt.PTS != av.NoPTS {
			p.audioPTS = float64(pkt.PTS) * p.audioTimeBase
		}

		frames, err := p.Source.AudioDecoder.Decode(pkt)
		p.audioq.done()
		if err != nil {
			p.decodeErrors.Increase()
			continue
		}

		p.audioFrames = frames
	}
}

// synchronizeAudio shrinks or grows buf to follow the master clock.
func (p *Player) synchronizeAudio(buf []byte) []byte {
	if !p.clocks.audioIsSlave() {
		return buf
	}

	n := p.audioSpec.FrameSize()
	diff := p.clocks.audio() - p.clocks.master()
	wanted := p.audioDiff.wantedSize(len(buf), diff, n, p.audioSpec.SampleRate)

	return resizeSamples(buf, wanted, n)
}
