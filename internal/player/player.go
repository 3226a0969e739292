// Package player contains the playback pipeline.
package player

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/counterdumper"
	"github.com/bluenviron/avplay/internal/logger"
)

const (
	syncThreshold = 0.01
)

// ErrClosed is returned when using a closed player.
var ErrClosed = errors.New("player is closed")

// Conf contains player parameters.
type Conf struct {
	SyncMode           SyncMode
	Framedrop          bool
	Loop               bool
	Autorotate         bool
	OutputWidth        int
	OutputHeight       int
	AudioBufferSamples int
	MaxQueueSize       int
	MinAudioQueueSize  int
	MinFrames          int
	RefreshPeriod      time.Duration
	FrameSkipFactor    float64
	FrameSkipGrowth    float64
	NoSyncThreshold    time.Duration
}

func (c *Conf) setDefaults() {
	if c.AudioBufferSamples == 0 {
		c.AudioBufferSamples = 1024
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = 15 * 1024 * 1024
	}
	if c.MinAudioQueueSize == 0 {
		c.MinAudioQueueSize = 20 * 16 * 1024
	}
	if c.MinFrames == 0 {
		c.MinFrames = 5
	}
	if c.RefreshPeriod == 0 {
		c.RefreshPeriod = 60 * time.Millisecond
	}
	if c.FrameSkipFactor == 0 {
		c.FrameSkipFactor = 0.05
	}
	if c.FrameSkipGrowth == 0 {
		c.FrameSkipGrowth = 1.05
	}
	if c.NoSyncThreshold == 0 {
		c.NoSyncThreshold = 10 * time.Second
	}
}

// State is a snapshot of the player status.
type State struct {
	Paused            bool
	Loop              bool
	Position          int64
	Duration          int64
	DecodeRate        float64
	HasVideo          bool
	HasAudio          bool
	FramesDisplayed   uint64
	FramesDropped     uint64
	DecodeErrors      uint64
	VideoQueuePackets int
	AudioQueueBytes   int
	AudioVideoDiff    float64
}

type testHooks struct {
	onFlush   func()
	onPicture func(pts float64, target float64)
}

// Player plays a Source.
type Player struct {
	ID        string
	Conf      Conf
	Source    *av.Source
	AudioSink AudioSink
	FrameSink FrameSink
	EventSink MediaEventSink
	Parent    logger.Writer

	now   func() float64
	hooks *testHooks

	hasVideo     bool
	hasAudio     bool
	noSync       float64
	clocks       *clockSet
	videoq       *packetQueue
	audioq       *packetQueue
	pictq        *pictureQueue
	decodeErrors *counterdumper.CounterDumper
	aborted      atomic.Bool
	loop         atomic.Bool

	// video
	filters         *filterChain
	scaler          scaler
	ptsCorr         ptsCorrection
	videoTimeBase   float64
	videoFrameDelay float64
	videoClock      atomicFloat64
	skipFrames      atomicFloat64
	skipFramesIndex float64
	refreshPending  atomic.Bool
	currentPos      atomic.Int64

	timingMutex    sync.Mutex
	frameTimer     float64
	frameLastPTS   float64
	frameLastDelay float64
	pausedAt       float64

	// audio
	audioSpec     av.AudioSpec
	audioTimeBase float64
	audioBuf      []byte
	audioBufIndex int
	audioSilence  []byte
	audioPTS      float64
	audioFrames   []*av.AudioFrame
	resampler     *resampler
	audioDiff     *audioDiffFilter

	// demux
	seekMutex sync.Mutex
	seekReq   bool
	seekPos   int64
	seekRel   int64

	// controller
	mutex      sync.Mutex
	userPaused bool
	decodeRate float64
	closed     bool

	framesDisplayed atomic.Uint64
	framesDropped   atomic.Uint64

	wg        sync.WaitGroup
	terminate chan struct{}
}

// Initialize starts the pipeline in paused state.
func (p *Player) Initialize() error {
	if p.Source == nil {
		return fmt.Errorf("source not provided")
	}

	if p.now == nil {
		p.now = wallClock
	}

	p.Conf.setDefaults()
	p.noSync = p.Conf.NoSyncThreshold.Seconds()

	p.hasVideo = p.Source.VideoStream != nil && p.Source.VideoDecoder != nil
	p.hasAudio = p.Source.AudioStream != nil && p.Source.AudioDecoder != nil && p.AudioSink != nil

	if !p.hasVideo && !p.hasAudio {
		return fmt.Errorf("no playable streams")
	}

	p.clocks = &clockSet{
		mode:     p.Conf.SyncMode,
		hasAudio: p.hasAudio,
		hasVideo: p.hasVideo,
		now:      p.now,
		paused:   true,
	}
	p.clocks.setExternal(0)
	p.pausedAt = p.now()

	p.videoq = newPacketQueue()
	p.audioq = newPacketQueue()
	p.pictq = newPictureQueue()
	p.loop.Store(p.Conf.Loop)
	p.decodeRate = 1
	p.currentPos.Store(-1)
	p.terminate = make(chan struct{})

	p.decodeErrors = &counterdumper.CounterDumper{
		OnReport: func(val uint64) {
			p.Log(logger.Warn, "%d decode %s",
				val,
				func() string {
					if val == 1 {
						return "error"
					}
					return "errors"
				}())
		},
	}
	p.decodeErrors.Start()

	if p.hasVideo {
		p.initVideo()
	}

	if p.hasAudio {
		err := p.openAudio()
		if err != nil {
			if !p.hasVideo {
				p.decodeErrors.Stop()
				return err
			}
			p.Log(logger.Warn, "audio disabled: %v", err)
			p.hasAudio = false
			p.clocks.hasAudio = false
		}
	}

	// decoders start by resetting their state
	if p.hasVideo {
		p.videoq.put(flushPacket) //nolint:errcheck
	}
	if p.hasAudio {
		p.audioq.put(flushPacket) //nolint:errcheck
	}

	p.wg.Add(1)
	go p.runDemux()

	if p.hasVideo {
		p.wg.Add(1)
		go p.runVideo()
	}

	p.wg.Add(1)
	go p.runRefresh()

	if p.hasAudio {
		p.AudioSink.Start(p.fillAudio)
	}

	p.Log(logger.Info, "opened, %s", p.describe())

	return nil
}

func (p *Player) describe() string {
	var ret string
	if p.hasVideo {
		st := p.Source.VideoStream
		ret += fmt.Sprintf("video %s %dx%d", st.Codec, st.Width, st.Height)
	}
	if p.hasAudio {
		if ret != "" {
			ret += ", "
		}
		st := p.Source.AudioStream
		ret += fmt.Sprintf("audio %s %dHz", st.Codec, st.SampleRate)
	}
	return ret
}

// Close closes the player.
func (p *Player) Close() {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return
	}
	p.closed = true
	p.mutex.Unlock()

	p.aborted.Store(true)
	close(p.terminate)
	p.videoq.abort()
	p.audioq.abort()
	p.pictq.abort()
	p.Source.Demuxer.Interrupt()

	if p.hasAudio {
		p.AudioSink.Close()
	}

	p.wg.Wait()

	p.decodeErrors.Stop()
	p.Source.Close()

	p.Log(logger.Info, "closed")
}

// Log implements logger.Writer.
func (p *Player) Log(level logger.Level, format string, args ...interface{}) {
	p.Parent.Log(level, "[player %s] "+format, append([]interface{}{p.ID}, args...)...)
}

func (p *Player) emit(e Event) {
	if p.EventSink != nil {
		p.EventSink.OnEvent(e)
	}
}

// setPaused pauses or resumes the pipeline.
// When resuming, the frame timer is shifted by the time spent paused.
func (p *Player) setPaused(paused bool) {
	p.timingMutex.Lock()
	defer p.timingMutex.Unlock()

	wasPaused := p.clocks.isPaused()
	now := p.now()

	switch {
	case paused && !wasPaused:
		p.pausedAt = now

	case !paused && wasPaused:
		p.frameTimer += now - p.pausedAt
	}

	p.clocks.setPaused(paused)
}

// Play starts playback, unless the player has been paused by the user.
func (p *Player) Play() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrClosed
	}

	if !p.userPaused {
		p.setPaused(false)
		p.emit(EventStart)
	}

	return nil
}

// Pause pauses playback.
func (p *Player) Pause() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrClosed
	}

	if !p.userPaused {
		p.userPaused = true
		p.setPaused(true)
		p.emit(EventPause)
	}

	return nil
}

// Resume resumes playback after Pause.
func (p *Player) Resume() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrClosed
	}

	if p.userPaused {
		p.userPaused = false
		p.setPaused(false)
		p.emit(EventResume)
	}

	return nil
}

// Stop rewinds and pauses playback.
func (p *Player) Stop() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.loop.Store(false)
	p.requestSeek(p.startTime(), 0)
	p.setPaused(true)
	p.userPaused = false
	p.emit(EventStop)

	return nil
}

func (p *Player) startTime() int64 {
	st := p.Source.Demuxer.StartTime()
	if st == av.NoPTS {
		return 0
	}
	return st
}

// SetCurrentTime seeks to an absolute position, in milliseconds.
func (p *Player) SetCurrentTime(ms int64) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrClosed
	}

	if ms < 0 {
		ms = 0
	}

	target := p.startTime() + ms*1000
	current := int64(p.clocks.master() * av.TimeBase)
	p.requestSeek(target, target-current)

	return nil
}

// GetCurrentTime returns the playback position, in milliseconds.
func (p *Player) GetCurrentTime() int64 {
	v := p.clocks.master() - float64(p.startTime())/av.TimeBase
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return int64(v * 1000)
}

// GetMediaTime returns the media duration in milliseconds, or -1 when unknown.
func (p *Player) GetMediaTime() int64 {
	d := p.Source.Demuxer.Duration()
	if d == av.NoPTS || d < 0 {
		return -1
	}
	return d / 1000
}

// SetLoop enables or disables looping.
func (p *Player) SetLoop(loop bool) {
	p.loop.Store(loop)
}

// IsLoop returns whether looping is enabled.
func (p *Player) IsLoop() bool {
	return p.loop.Load()
}

// SetDecodeRate stores the decode rate. Rates other than 1 are not applied.
func (p *Player) SetDecodeRate(rate float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.decodeRate = rate
	if rate != 0 {
		p.userPaused = false
	}
	if rate != 0 && rate != 1 {
		p.Log(logger.Warn, "decode rate %v is not supported, playing at normal rate", rate)
	}
}

// GetDecodeRate returns the stored decode rate.
func (p *Player) GetDecodeRate() float64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.decodeRate
}

// Metadata returns the media tags.
func (p *Player) Metadata() av.Metadata {
	return p.Source.Demuxer.Metadata()
}

// HasVideo returns whether a video stream is being played.
func (p *Player) HasVideo() bool {
	return p.hasVideo
}

// HasAudio returns whether an audio stream is being played.
func (p *Player) HasAudio() bool {
	return p.hasAudio
}

// State returns the player status.
func (p *Player) State() State {
	p.mutex.Lock()
	userPaused := p.userPaused
	rate := p.decodeRate
	p.mutex.Unlock()

	s := State{
		Paused:            userPaused || p.clocks.isPaused(),
		Loop:              p.loop.Load(),
		Position:          p.GetCurrentTime(),
		Duration:          p.GetMediaTime(),
		DecodeRate:        rate,
		HasVideo:          p.hasVideo,
		HasAudio:          p.hasAudio,
		FramesDisplayed:   p.framesDisplayed.Load(),
		FramesDropped:     p.framesDropped.Load(),
		DecodeErrors:      p.decodeErrors.Total(),
		VideoQueuePackets: p.videoq.len(),
		AudioQueueBytes:   p.audioq.byteSize(),
	}

	if p.hasVideo && p.hasAudio {
		s.AudioVideoDiff = p.clocks.audio() - p.clocks.video()
	}

	return s
}
