package player

import (
	"math"
)

const (
	audioDiffAvgNB             = 20
	sampleCorrectionPercentMax = 10
)

// audioDiffFilter averages the difference between the audio clock and the
// master clock and computes how many bytes must be played to compensate it.
type audioDiffFilter struct {
	coef      float64
	threshold float64
	noSync    float64
	cum       float64
	count     int
}

func newAudioDiffFilter(samples int, sampleRate int, noSync float64) *audioDiffFilter {
	return &audioDiffFilter{
		coef:      math.Exp(math.Log(0.01) / audioDiffAvgNB),
		threshold: 2 * float64(samples) / float64(sampleRate),
		noSync:    noSync,
	}
}

// wantedSize returns the corrected size of a block of size bytes,
// made of frames of n bytes.
func (f *audioDiffFilter) wantedSize(size int, diff float64, n int, sampleRate int) int {
	if math.IsNaN(diff) || math.Abs(diff) >= f.noSync {
		f.count = 0
		f.cum = 0
		return size
	}

	f.cum = diff + f.coef*f.cum

	if f.count < audioDiffAvgNB {
		f.count++
		return size
	}

	avg := f.cum * (1 - f.coef)
	if math.Abs(avg) < f.threshold {
		return size
	}

	wanted := size + int(diff*float64(sampleRate))*n
	minSize := ((size / n) * (100 - sampleCorrectionPercentMax) / 100) * n
	maxSize := ((size / n) * (100 + sampleCorrectionPercentMax) / 100) * n

	switch {
	case wanted < minSize:
		wanted = minSize
	case wanted > maxSize:
		wanted = maxSize
	}

	return wanted
}

// resizeSamples truncates buf, or extends it by repeating its last frame.
func resizeSamples(buf []byte, wanted int, n int) []byte {
	switch {
	case wanted == len(buf):
		return buf

	case wanted < len(buf):
		return buf[:wanted]
	}

	out := make([]byte, wanted)
	copy(out, buf)

	last := buf[len(buf)-n:]
	for i := len(buf); i < wanted; i += n {
		copy(out[i:], last)
	}

	return out
}
