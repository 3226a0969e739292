// Package audiosink contains audio outputs.
package audiosink

import (
	"time"

	"github.com/bluenviron/avplay/internal/av"
)

// Null is an audio sink that discards samples, pulling them at real-time rate.
type Null struct {
	spec      av.AudioSpec
	terminate chan struct{}
	done      chan struct{}
}

// Open implements player.AudioSink.
func (s *Null) Open(wanted av.AudioSpec) (av.AudioSpec, error) {
	s.spec = wanted
	return wanted, nil
}

// Start implements player.AudioSink.
func (s *Null) Start(fill func([]byte)) {
	s.terminate = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(fill)
}

func (s *Null) run(fill func([]byte)) {
	defer close(s.done)

	period := time.Duration(float64(time.Second) * float64(s.spec.Samples) / float64(s.spec.SampleRate))
	buf := make([]byte, s.spec.Samples*s.spec.FrameSize())

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			fill(buf)

		case <-s.terminate:
			return
		}
	}
}

// Latency implements player.AudioSink.
func (s *Null) Latency() int {
	return 0
}

// Close implements player.AudioSink.
func (s *Null) Close() {
	if s.terminate != nil {
		close(s.terminate)
		<-s.done
	}
}
