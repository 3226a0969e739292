// Package libav contains a backend that uses the FFmpeg libraries.
package libav

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/logger"
)

var errNoStreams = errors.New("media doesn't contain any audio or video stream")

var setLogCallbackOnce sync.Once

func setLogCallback(l logger.Writer) {
	setLogCallbackOnce.Do(func() {
		astiav.SetLogLevel(astiav.LogLevelWarning)
		astiav.SetLogCallback(func(_ astiav.Classer, level astiav.LogLevel, _ string, msg string) {
			msg = strings.TrimSpace(msg)
			if msg == "" || l == nil {
				return
			}
			l.Log(logLevel(level), "[backend libav] %s", msg)
		})
	})
}

func logLevel(level astiav.LogLevel) logger.Level {
	switch {
	case level <= astiav.LogLevelError:
		return logger.Error
	case level <= astiav.LogLevelWarning:
		return logger.Warn
	case level <= astiav.LogLevelInfo:
		return logger.Info
	}
	return logger.Debug
}

func toRational(r astiav.Rational) av.Rational {
	return av.Rational{Num: r.Num(), Den: r.Den()}
}

func toTimestamp(v int64) int64 {
	if v == astiav.NoPtsValue {
		return av.NoPTS
	}
	return v
}

// Backend is the libav backend.
// It accepts any URL supported by the FFmpeg libraries.
type Backend struct {
	// destination of messages printed by the FFmpeg libraries.
	Log logger.Writer

	// when true, decoders are not created. Used in tests.
	NoDecoders bool
}

// Schemes implements backend.Backend.
func (Backend) Schemes() []string {
	return nil
}

// Open implements backend.Backend.
func (b Backend) Open(ctx context.Context, u *backend.URL, opts backend.Options) (*av.Source, error) {
	setLogCallback(b.Log)

	input := u.Raw
	if u.Scheme == "file" {
		input = u.FilePath()
	}

	d := &demuxer{
		input:       input,
		readTimeout: opts.ReadTimeout,
		parent:      opts.Parent,
	}
	err := d.initialize(ctx)
	if err != nil {
		return nil, err
	}

	src := &av.Source{
		Demuxer: d,
	}

	if d.videoIndex >= 0 {
		src.VideoStream = d.streamInfo(d.videoIndex)
	}
	if d.audioIndex >= 0 {
		src.AudioStream = d.streamInfo(d.audioIndex)
	}

	if b.NoDecoders {
		return src, nil
	}

	if src.VideoStream != nil {
		vd := &videoDecoder{par: d.fc.Streams()[d.videoIndex].CodecParameters()}
		err = vd.initialize()
		if err != nil {
			d.Log(logger.Warn, "video disabled: %v", err)
			src.VideoStream = nil
		} else {
			src.VideoDecoder = vd
		}
	}

	if src.AudioStream != nil {
		ad := &audioDecoder{par: d.fc.Streams()[d.audioIndex].CodecParameters()}
		err = ad.initialize()
		if err != nil {
			d.Log(logger.Warn, "audio disabled: %v", err)
			src.AudioStream = nil
		} else {
			src.AudioDecoder = ad
		}
	}

	if src.VideoStream == nil && src.AudioStream == nil {
		src.Close()
		return nil, errNoStreams
	}

	d.setEnabled(src.VideoStream, src.AudioStream)

	return src, nil
}

func openCodec(par *astiav.CodecParameters) (*astiav.Codec, *astiav.CodecContext, error) {
	codec := astiav.FindDecoder(par.CodecID())
	if codec == nil {
		return nil, nil, fmt.Errorf("no decoder found for codec '%s'", par.CodecID().String())
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, nil, fmt.Errorf("AllocCodecContext() failed")
	}

	err := par.ToCodecContext(cc)
	if err != nil {
		cc.Free()
		return nil, nil, fmt.Errorf("ToCodecContext() failed: %w", err)
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	opts.Set("threads", "auto", 0) //nolint:errcheck

	err = cc.Open(codec, opts)
	if err != nil {
		cc.Free()
		return nil, nil, fmt.Errorf("unable to open codec '%s': %w", codec.Name(), err)
	}

	return codec, cc, nil
}

func readTimeoutOption(d time.Duration) string {
	return strconv.FormatInt(d.Microseconds(), 10)
}
