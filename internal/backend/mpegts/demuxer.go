package mpegts

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/asticode/go-astits"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	mcmpegts "github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/counterdumper"
	"github.com/bluenviron/avplay/internal/logger"
)

const (
	clockRate = 90000

	// maximum number of access units read while looking for the SPS.
	maxProbePackets = 512
)

var (
	errNoH264      = errors.New("the stream doesn't contain any H264 track")
	errInterrupted = errors.New("interrupted")
	errNotSeekable = errors.New("the stream is not seekable")
	errOutOfRange  = errors.New("seek position is out of range")
)

func toTimeBase(ts int64) int64 {
	if ts == av.NoPTS {
		return av.NoPTS
	}
	return ts * av.TimeBase / clockRate
}

type tsPacket struct {
	pkt *av.Packet
	key bool
}

type demuxer struct {
	transport transport
	parent    logger.Writer

	video        *av.StreamInfo
	metadata     av.Metadata
	startTime    int64
	duration     int64
	decodeErrors *counterdumper.CounterDumper
	interrupted  atomic.Bool

	// reading state
	cr                *countingReader
	r                 *mcmpegts.Reader
	pending           []tsPacket
	loggedUnsupported bool
	parsedSPS         bool
}

// Log implements logger.Writer.
func (d *demuxer) Log(level logger.Level, format string, args ...any) {
	if d.parent != nil {
		d.parent.Log(level, "[backend mpegts] "+format, args...)
	}
}

func (d *demuxer) initialize(ctx context.Context) error {
	d.startTime = av.NoPTS
	d.duration = av.NoPTS

	d.video = &av.StreamInfo{
		Index:    0,
		Type:     av.MediaTypeVideo,
		Codec:    "h264",
		TimeBase: av.Rational{Num: 1, Den: clockRate},
	}

	d.decodeErrors = newDecodeErrorsCounter(d)
	d.decodeErrors.Start()

	if ft, ok := d.transport.(*fileTransport); ok {
		d.metadata.Title = filepath.Base(ft.path)

		err := d.scanTimestamps(ctx)
		if err != nil {
			d.decodeErrors.Stop()
			d.transport.close()
			return err
		}
	}

	err := d.openReader(ctx)
	if err != nil {
		d.decodeErrors.Stop()
		d.transport.close()
		return err
	}

	d.probe()

	return nil
}

// scanTimestamps reads the whole stream in order to find start time and duration.
func (d *demuxer) scanTimestamps(ctx context.Context) error {
	rd, err := d.transport.open(ctx)
	if err != nil {
		return err
	}

	r := &mcmpegts.Reader{R: rd}
	err = r.Initialize()
	if err != nil {
		return err
	}

	track := findH264Track(r)
	if track == nil {
		return errNoH264
	}

	td := &mcmpegts.TimeDecoder{}
	td.Initialize()

	minPTS := av.NoPTS
	maxPTS := av.NoPTS

	r.OnDecodeError(func(_ error) {})

	r.OnDataH264(track, func(pts int64, _ int64, _ [][]byte) error {
		pts = td.Decode(pts)
		if minPTS == av.NoPTS || pts < minPTS {
			minPTS = pts
		}
		if maxPTS == av.NoPTS || pts > maxPTS {
			maxPTS = pts
		}
		return nil
	})

	for {
		err = r.Read()
		if err != nil {
			if !isEOF(err) {
				return err
			}
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if minPTS != av.NoPTS {
		d.startTime = toTimeBase(minPTS)
		d.duration = toTimeBase(maxPTS - minPTS)
	}

	return nil
}

func findH264Track(r *mcmpegts.Reader) *mcmpegts.Track {
	for _, track := range r.Tracks() {
		if _, ok := track.Codec.(*mcmpegts.CodecH264); ok {
			return track
		}
	}
	return nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, astits.ErrNoMorePackets)
}

func (d *demuxer) openReader(ctx context.Context) error {
	rd, err := d.transport.open(ctx)
	if err != nil {
		return err
	}

	d.cr = &countingReader{r: rd}
	r := &mcmpegts.Reader{R: d.cr}
	err = r.Initialize()
	if err != nil {
		return err
	}

	track := findH264Track(r)
	if track == nil {
		return errNoH264
	}

	if !d.loggedUnsupported {
		d.loggedUnsupported = true
		for _, t := range r.Tracks() {
			if t != track {
				d.Log(logger.Warn, "skipping track with PID %d (%T), only H264 is supported", t.PID, t.Codec)
			}
		}
	}

	td := &mcmpegts.TimeDecoder{}
	td.Initialize()

	r.OnDecodeError(func(_ error) {
		d.decodeErrors.Increase()
	})

	r.OnDataH264(track, func(pts int64, dts int64, au [][]byte) error {
		pts = td.Decode(pts)
		dts = td.Decode(dts)

		if !d.parsedSPS {
			d.parsedSPS = d.parseSPS(au)
		}

		annexb, err := h264.AnnexB(au).Marshal()
		if err != nil {
			d.decodeErrors.Increase()
			return nil //nolint:nilerr
		}

		d.pending = append(d.pending, tsPacket{
			pkt: &av.Packet{
				StreamIndex: d.video.Index,
				PTS:         pts,
				DTS:         dts,
				Pos:         d.cr.pos,
				Data:        annexb,
			},
			key: h264.IsRandomAccess(au),
		})
		return nil
	})

	d.r = r
	d.pending = nil

	return nil
}

// probe reads the first access units in order to fill stream parameters.
func (d *demuxer) probe() {
	for len(d.pending) < maxProbePackets && !d.parsedSPS {
		err := d.r.Read()
		if err != nil {
			return
		}
	}
}

func (d *demuxer) parseSPS(au [][]byte) bool {
	for _, nalu := range au {
		if len(nalu) == 0 || h264.NALUType(nalu[0]&0x1F) != h264.NALUTypeSPS {
			continue
		}

		var sps h264.SPS
		err := sps.Unmarshal(nalu)
		if err != nil {
			continue
		}

		d.video.Width = sps.Width()
		d.video.Height = sps.Height()

		if fps := sps.FPS(); fps > 0 {
			d.video.FrameRate = av.Rational{Num: int(fps * 1000), Den: 1000}
		}

		return true
	}

	return false
}

func (d *demuxer) next() (tsPacket, error) {
	for len(d.pending) == 0 {
		if d.interrupted.Load() {
			return tsPacket{}, errInterrupted
		}

		err := d.r.Read()
		if err != nil {
			if d.interrupted.Load() {
				return tsPacket{}, errInterrupted
			}
			if isEOF(err) {
				return tsPacket{}, av.ErrEOF
			}
			return tsPacket{}, err
		}
	}

	p := d.pending[0]
	d.pending[0] = tsPacket{}
	d.pending = d.pending[1:]
	return p, nil
}

// Streams implements av.Demuxer.
func (d *demuxer) Streams() []*av.StreamInfo {
	return []*av.StreamInfo{d.video}
}

// ReadPacket implements av.Demuxer.
func (d *demuxer) ReadPacket() (*av.Packet, error) {
	p, err := d.next()
	if err != nil {
		return nil, err
	}
	return p.pkt, nil
}

// Seek implements av.Demuxer.
// The stream is read again from the beginning until the last keyframe
// before target, which is returned first, followed by the rest of its group.
func (d *demuxer) Seek(minPos int64, target int64, maxPos int64) error {
	if !d.transport.seekable() {
		return errNotSeekable
	}

	err := d.openReader(context.Background())
	if err != nil {
		return err
	}

	var gop []tsPacket

	for {
		p, err := d.next()
		if err != nil {
			if errors.Is(err, av.ErrEOF) && len(gop) != 0 && toTimeBase(gop[0].pkt.PTS) >= minPos {
				d.pending = gop
				return nil
			}
			if errors.Is(err, av.ErrEOF) {
				return errOutOfRange
			}
			return err
		}

		pos := toTimeBase(p.pkt.PTS)

		if p.key {
			if pos <= target {
				gop = []tsPacket{p}
				continue
			}

			if len(gop) != 0 && toTimeBase(gop[0].pkt.PTS) >= minPos {
				gop = append(gop, p)
				d.pending = append(gop, d.pending...)
				return nil
			}

			if pos <= maxPos {
				d.pending = append([]tsPacket{p}, d.pending...)
				return nil
			}

			return errOutOfRange
		}

		if len(gop) == 0 {
			continue
		}

		gop = append(gop, p)

		if toTimeBase(p.pkt.DTS) > target && toTimeBase(gop[0].pkt.PTS) >= minPos {
			d.pending = append(gop, d.pending...)
			return nil
		}
	}
}

// Duration implements av.Demuxer.
func (d *demuxer) Duration() int64 {
	return d.duration
}

// StartTime implements av.Demuxer.
func (d *demuxer) StartTime() int64 {
	return d.startTime
}

// Metadata implements av.Demuxer.
func (d *demuxer) Metadata() av.Metadata {
	return d.metadata
}

// Interrupt implements av.Demuxer.
func (d *demuxer) Interrupt() {
	d.interrupted.Store(true)
	d.transport.interrupt()
}

// Close implements av.Demuxer.
func (d *demuxer) Close() {
	d.transport.close()
	d.decodeErrors.Stop()
}
