package player

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func runDiffFilter(f *audioDiffFilter, diff float64, calls int) int {
	var size int
	for i := 0; i < calls; i++ {
		size = f.wantedSize(1024*4, diff, 4, 48000)
	}
	return size
}

func TestAudioDiffFilterZeroDiff(t *testing.T) {
	f := newAudioDiffFilter(1024, 48000, 10)
	require.Equal(t, 1024*4, runDiffFilter(f, 0, 50))
}

func TestAudioDiffFilterAudioBehind(t *testing.T) {
	f := newAudioDiffFilter(1024, 48000, 10)

	// averaging window not filled yet
	require.Equal(t, 1024*4, runDiffFilter(f, -0.05, audioDiffAvgNB))

	size := runDiffFilter(f, -0.05, 1)
	require.Less(t, size, 1024*4)
	require.Equal(t, (1024*90/100)*4, size)
}

func TestAudioDiffFilterAudioAhead(t *testing.T) {
	f := newAudioDiffFilter(1024, 48000, 10)
	size := runDiffFilter(f, 0.05, audioDiffAvgNB+1)
	require.Equal(t, (1024*110/100)*4, size)
}

func TestAudioDiffFilterSmallDiff(t *testing.T) {
	f := newAudioDiffFilter(1024, 48000, 10)
	size := runDiffFilter(f, 0.01, audioDiffAvgNB+5)
	require.Equal(t, 1024*4, size)
}

func TestAudioDiffFilterReset(t *testing.T) {
	f := newAudioDiffFilter(1024, 48000, 10)
	runDiffFilter(f, -0.05, audioDiffAvgNB+1)

	require.Equal(t, 1024*4, f.wantedSize(1024*4, 20, 4, 48000))
	require.Equal(t, 0, f.count)
	require.Equal(t, float64(0), f.cum)
}

func TestResizeSamples(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6}

	require.Equal(t, []byte{1, 2, 3, 4}, resizeSamples(buf, 4, 2))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 5, 6, 5, 6}, resizeSamples(buf, 10, 2))
	require.Equal(t, buf, resizeSamples(buf, 6, 2))
}

func TestFillAudioUnderrun(t *testing.T) {
	p := &Player{
		audioq:       newPacketQueue(),
		audioSilence: make([]byte, 16),
		audioPTS:     3,
		clocks:       &clockSet{now: wallClock},
	}

	stream := bytes.Repeat([]byte{0xFF}, 40)

	done := make(chan struct{})
	go func() {
		p.fillAudio(stream)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		p.audioq.abort()
		t.Fatal("audio callback blocked on an empty queue")
	}

	require.Equal(t, make([]byte, 40), stream)
	require.Equal(t, float64(3), p.clocks.audio())
}
