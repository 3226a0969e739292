package libav

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"
	mcmpegts "github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/test"
)

var testSPS = []byte{
	0x67, 0x42, 0xc0, 0x28, 0xd9, 0x00, 0x78, 0x02,
	0x27, 0xe5, 0x84, 0x00, 0x00, 0x03, 0x00, 0x04,
	0x00, 0x00, 0x03, 0x00, 0xf0, 0x3c, 0x60, 0xc9,
	0x20,
}

func writeTSFile(t *testing.T) string {
	var buf bytes.Buffer

	track := &mcmpegts.Track{
		Codec: &mcmpegts.CodecH264{},
	}

	w := &mcmpegts.Writer{W: &buf, Tracks: []*mcmpegts.Track{track}}
	err := w.Initialize()
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		au := [][]byte{{0x01, byte(i)}}
		if (i % 10) == 0 {
			au = [][]byte{testSPS, {0x08, 0x06, 0x07, 0x08}, {0x05, byte(i)}}
		}

		err = w.WriteH264(track, 90000+int64(i)*3600, 90000+int64(i)*3600, au)
		require.NoError(t, err)
	}

	fpath := filepath.Join(t.TempDir(), "test.ts")
	err = os.WriteFile(fpath, buf.Bytes(), 0o644)
	require.NoError(t, err)

	return fpath
}

func TestOpenFile(t *testing.T) {
	u, err := backend.ParseURL(writeTSFile(t))
	require.NoError(t, err)

	src, err := Backend{Log: test.NilLogger, NoDecoders: true}.Open(context.Background(), u, backend.Options{
		Parent: test.NilLogger,
	})
	require.NoError(t, err)
	defer src.Close()

	require.NotNil(t, src.VideoStream)
	require.Nil(t, src.AudioStream)
	require.Equal(t, "h264", src.VideoStream.Codec)
	require.Equal(t, av.MediaTypeVideo, src.VideoStream.Type)
	require.Equal(t, av.Rational{Num: 1, Den: 90000}, src.VideoStream.TimeBase)
	require.Equal(t, []*av.StreamInfo{src.VideoStream}, src.Demuxer.Streams())

	count := 0
	for {
		pkt, err := src.Demuxer.ReadPacket()
		if errors.Is(err, av.ErrEOF) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, src.VideoStream.Index, pkt.StreamIndex)
		require.NotEmpty(t, pkt.Data)
		count++
	}
	require.NotZero(t, count)

	err = src.Demuxer.Seek(0, 0, 1000000)
	require.NoError(t, err)

	_, err = src.Demuxer.ReadPacket()
	require.NoError(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	u, err := backend.ParseURL(filepath.Join(t.TempDir(), "missing.ts"))
	require.NoError(t, err)

	_, err = Backend{NoDecoders: true}.Open(context.Background(), u, backend.Options{})
	require.Error(t, err)
}

func TestOpenCanceled(t *testing.T) {
	u, err := backend.ParseURL(writeTSFile(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src, err := Backend{NoDecoders: true}.Open(ctx, u, backend.Options{})
	if err == nil {
		// the file was opened before the interrupt was noticed
		src.Close()
		return
	}
	require.ErrorIs(t, err, context.Canceled)
}

func TestLogLevel(t *testing.T) {
	for _, ca := range []struct {
		in  astiav.LogLevel
		out logger.Level
	}{
		{astiav.LogLevelFatal, logger.Error},
		{astiav.LogLevelError, logger.Error},
		{astiav.LogLevelWarning, logger.Warn},
		{astiav.LogLevelInfo, logger.Info},
		{astiav.LogLevelVerbose, logger.Debug},
	} {
		require.Equal(t, ca.out, logLevel(ca.in))
	}
}
