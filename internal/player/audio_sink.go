package player

import (
	"github.com/bluenviron/avplay/internal/av"
)

// AudioSink is a pull-based audio output.
type AudioSink interface {
	// Open prepares the output and returns the negotiated spec.
	Open(wanted av.AudioSpec) (av.AudioSpec, error)

	// Start starts pulling samples through fill.
	Start(fill func(buf []byte))

	// Latency returns the number of bytes accepted but not yet played.
	Latency() int

	Close()
}
