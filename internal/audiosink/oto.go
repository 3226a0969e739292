package audiosink

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/bluenviron/avplay/internal/av"
)

var otoCtx struct {
	once       sync.Once
	ctx        *oto.Context
	sampleRate int
	channels   int
	err        error
}

// oto allows a single context per process, therefore every sink shares it.
func sharedContext(sampleRate int, channels int) (*oto.Context, int, int, error) {
	otoCtx.once.Do(func() {
		ctx, ready, err := oto.NewContext(sampleRate, channels, oto.FormatSignedInt16LE)
		if err != nil {
			otoCtx.err = err
			return
		}
		<-ready

		otoCtx.ctx = ctx
		otoCtx.sampleRate = sampleRate
		otoCtx.channels = channels
	})

	return otoCtx.ctx, otoCtx.sampleRate, otoCtx.channels, otoCtx.err
}

type pullReader struct {
	fill func([]byte)
}

func (r *pullReader) Read(p []byte) (int, error) {
	r.fill(p)
	return len(p), nil
}

// Oto is an audio sink that plays on the default audio device.
type Oto struct {
	SampleRate int
	Channels   int

	spec   av.AudioSpec
	player oto.Player
}

// Open implements player.AudioSink.
func (s *Oto) Open(wanted av.AudioSpec) (av.AudioSpec, error) {
	if wanted.Format != av.SampleFormatS16 {
		return av.AudioSpec{}, fmt.Errorf("unsupported sample format: %v", wanted.Format)
	}

	_, rate, channels, err := sharedContext(s.SampleRate, s.Channels)
	if err != nil {
		return av.AudioSpec{}, fmt.Errorf("unable to open audio device: %w", err)
	}

	s.spec = av.AudioSpec{
		SampleRate: rate,
		Channels:   channels,
		Format:     av.SampleFormatS16,
		Samples:    wanted.Samples,
	}

	return s.spec, nil
}

// Start implements player.AudioSink.
func (s *Oto) Start(fill func([]byte)) {
	s.player = otoCtx.ctx.NewPlayer(&pullReader{fill: fill})
	s.player.Play()
}

// Latency implements player.AudioSink.
func (s *Oto) Latency() int {
	if s.player == nil {
		return 0
	}
	return s.player.UnplayedBufferSize()
}

// Close implements player.AudioSink.
func (s *Oto) Close() {
	if s.player != nil {
		s.player.Pause()
		s.player.Close() //nolint:errcheck
	}
}
