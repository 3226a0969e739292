package synth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/backend"
)

func TestOpenParams(t *testing.T) {
	u, err := backend.ParseURL("synth://?duration=1s&fps=10&width=16&height=8&audio=true&rate=8000&channels=1&title=test")
	require.NoError(t, err)

	src, err := Backend{}.Open(context.Background(), u, backend.Options{})
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, &av.StreamInfo{
		Index:     0,
		Type:      av.MediaTypeVideo,
		Codec:     "rawvideo",
		TimeBase:  av.Rational{Num: 1, Den: 10},
		FrameRate: av.Rational{Num: 10, Den: 1},
		Width:     16,
		Height:    8,
	}, src.VideoStream)

	require.Equal(t, 8000, src.AudioStream.SampleRate)
	require.Equal(t, 1, src.AudioStream.Channels)
	require.Equal(t, "test", src.Demuxer.Metadata().Title)
	require.Equal(t, int64(1000000), src.Demuxer.Duration())
}

func TestOpenInvalid(t *testing.T) {
	u, err := backend.ParseURL("synth://?fps=0")
	require.NoError(t, err)

	_, err = Backend{}.Open(context.Background(), u, backend.Options{})
	require.Error(t, err)
}

func TestReadAll(t *testing.T) {
	src := NewSource(Params{
		Duration:   time.Second,
		FPS:        10,
		Width:      8,
		Height:     8,
		Video:      true,
		Audio:      true,
		SampleRate: 4096,
		Channels:   2,
	})
	defer src.Close()

	videoCount := 0
	audioSamples := 0
	lastTime := -1.0

	for {
		pkt, err := src.Demuxer.ReadPacket()
		if errors.Is(err, av.ErrEOF) {
			break
		}
		require.NoError(t, err)

		switch pkt.StreamIndex {
		case src.VideoStream.Index:
			frames, err := src.VideoDecoder.Decode(pkt)
			require.NoError(t, err)
			require.Len(t, frames, 1)
			r, g, _, _ := frames[0].Image.At(0, 0).RGBA()
			require.Equal(t, videoCount, int(r>>8)|int(g>>8)<<8)

			ts := float64(pkt.PTS) / 10
			require.GreaterOrEqual(t, ts, lastTime)
			lastTime = ts
			videoCount++

		case src.AudioStream.Index:
			frames, err := src.AudioDecoder.Decode(pkt)
			require.NoError(t, err)
			require.Len(t, frames[0].Data, frames[0].NbSamples*4)

			ts := float64(pkt.PTS) / 4096
			require.GreaterOrEqual(t, ts, lastTime)
			lastTime = ts
			audioSamples += frames[0].NbSamples
		}
	}

	require.Equal(t, 10, videoCount)
	require.Equal(t, 4096, audioSamples)
}

func TestSeek(t *testing.T) {
	src := NewSource(Params{
		Duration:   2 * time.Second,
		FPS:        25,
		Width:      8,
		Height:     8,
		Video:      true,
		SampleRate: 48000,
		Channels:   2,
	})
	defer src.Close()

	err := src.Demuxer.Seek(-1<<63, 1010000, 1<<63-1)
	require.NoError(t, err)

	pkt, err := src.Demuxer.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, int64(26), pkt.PTS)

	err = src.Demuxer.Seek(1500000, 1000000, 1<<63-1)
	require.NoError(t, err)

	pkt, err = src.Demuxer.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, int64(38), pkt.PTS)

	err = src.Demuxer.Seek(-1<<63, 3000000, 1<<63-1)
	require.Error(t, err)
}

func TestFrameIndex(t *testing.T) {
	c := frameColor(300)
	require.Equal(t, 300, FrameIndex([4]byte{c.B, c.G, c.R, c.A}))
}
