package player

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bluenviron/avplay/internal/av"
)

// resampler converts decoded frames into the sink format, with linear
// interpolation when sample rates differ. It is initialized lazily with
// the parameters of the first frame and reinitialized when they change.
type resampler struct {
	out av.AudioSpec

	initialized bool
	inFormat    av.SampleFormat
	inChannels  int
	inRate      int
	step        float64
	pos         float64
	prev        []float64
	mapped      []float64
	buf         []byte
}

func (r *resampler) reset() {
	r.initialized = false
}

func (r *resampler) initialize(frame *av.AudioFrame) {
	r.initialized = true
	r.inFormat = frame.Format
	r.inChannels = frame.Channels
	r.inRate = frame.SampleRate
	r.step = float64(frame.SampleRate) / float64(r.out.SampleRate)
	r.pos = 0
	r.prev = nil
}

func (r *resampler) convert(frame *av.AudioFrame) ([]byte, error) {
	if frame.Channels <= 0 || frame.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid audio frame parameters")
	}

	inFrameSize := frame.Channels * frame.Format.BytesPerSample()
	if len(frame.Data) < frame.NbSamples*inFrameSize {
		return nil, fmt.Errorf("audio frame is too short")
	}

	if frame.Format == r.out.Format && frame.Channels == r.out.Channels && frame.SampleRate == r.out.SampleRate {
		return frame.Data[:frame.NbSamples*inFrameSize], nil
	}

	if !r.initialized || frame.Format != r.inFormat ||
		frame.Channels != r.inChannels || frame.SampleRate != r.inRate {
		r.initialize(frame)
	}

	r.remix(frame)

	outCh := r.out.Channels
	nb := frame.NbSamples
	r.buf = r.buf[:0]

	sample := func(i int, c int) float64 {
		if i < 0 {
			if r.prev == nil {
				return r.mapped[c]
			}
			return r.prev[c]
		}
		if i >= nb {
			i = nb - 1
		}
		return r.mapped[i*outCh+c]
	}

	for ; r.pos <= float64(nb-1); r.pos += r.step {
		i := int(math.Floor(r.pos))
		frac := r.pos - float64(i)

		for c := 0; c < outCh; c++ {
			a := sample(i, c)
			b := sample(i+1, c)
			r.buf = binary.LittleEndian.AppendUint16(r.buf, uint16(toS16(a+(b-a)*frac)))
		}
	}

	r.pos -= float64(nb)

	if nb > 0 {
		if r.prev == nil {
			r.prev = make([]float64, outCh)
		}
		copy(r.prev, r.mapped[(nb-1)*outCh:nb*outCh])
	}

	return r.buf, nil
}

// remix converts samples to float and maps input channels to output channels.
func (r *resampler) remix(frame *av.AudioFrame) {
	inCh := frame.Channels
	outCh := r.out.Channels
	bps := frame.Format.BytesPerSample()

	if cap(r.mapped) < frame.NbSamples*outCh {
		r.mapped = make([]float64, frame.NbSamples*outCh)
	}
	r.mapped = r.mapped[:frame.NbSamples*outCh]

	read := func(i int, c int) float64 {
		off := (i*inCh + c) * bps
		if frame.Format == av.SampleFormatF32 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(frame.Data[off:])))
		}
		return float64(int16(binary.LittleEndian.Uint16(frame.Data[off:]))) / 32768
	}

	for i := 0; i < frame.NbSamples; i++ {
		if outCh == 1 && inCh > 1 {
			var sum float64
			for c := 0; c < inCh; c++ {
				sum += read(i, c)
			}
			r.mapped[i] = sum / float64(inCh)
			continue
		}

		for c := 0; c < outCh; c++ {
			r.mapped[i*outCh+c] = read(i, min(c, inCh-1))
		}
	}
}

func toS16(v float64) int16 {
	v *= 32768
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
