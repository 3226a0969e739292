// Package mpegts contains a backend that reads MPEG-TS from files, UDP and SRT.
package mpegts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/counterdumper"
	"github.com/bluenviron/avplay/internal/logger"
)

var fileExtensions = []string{".ts", ".m2ts", ".mts"}

// Backend is the MPEG-TS backend.
type Backend struct {
	// when true, decoders are not created. Used in tests.
	NoDecoders bool
}

// Schemes implements backend.Backend.
func (Backend) Schemes() []string {
	return []string{"file", "udp", "srt"}
}

// Open implements backend.Backend.
func (b Backend) Open(ctx context.Context, u *backend.URL, opts backend.Options) (*av.Source, error) {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 10 * time.Second
	}

	var t transport

	switch u.Scheme {
	case "file":
		ext := strings.ToLower(filepath.Ext(u.FilePath()))
		supported := false
		for _, e := range fileExtensions {
			if ext == e {
				supported = true
				break
			}
		}
		if !supported {
			return nil, fmt.Errorf("%w: extension '%s'", backend.ErrUnsupportedURL, ext)
		}
		t = &fileTransport{path: u.FilePath()}

	case "udp":
		t = &udpTransport{u: u.URL, readTimeout: opts.ReadTimeout}

	case "srt":
		t = &srtTransport{raw: u.Raw, readTimeout: opts.ReadTimeout}

	default:
		return nil, backend.ErrUnsupportedURL
	}

	d := &demuxer{
		transport: t,
		parent:    opts.Parent,
	}
	err := d.initialize(ctx)
	if err != nil {
		return nil, err
	}

	src := &av.Source{
		Demuxer:     d,
		VideoStream: d.video,
	}

	if !b.NoDecoders {
		dec := &h264Decoder{}
		err = dec.initialize()
		if err != nil {
			d.Close()
			return nil, err
		}
		src.VideoDecoder = dec
	}

	return src, nil
}

func newDecodeErrorsCounter(l logger.Writer) *counterdumper.CounterDumper {
	return &counterdumper.CounterDumper{
		OnReport: func(val uint64) {
			l.Log(logger.Warn, "%d decode %s",
				val,
				func() string {
					if val == 1 {
						return "error"
					}
					return "errors"
				}())
		},
	}
}
