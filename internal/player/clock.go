package player

import (
	"sync"
	"time"
)

// SyncMode selects the master clock.
type SyncMode int

// sync modes.
const (
	SyncAudioMaster SyncMode = iota
	SyncVideoMaster
	SyncExternalClock
)

// String implements fmt.Stringer.
func (m SyncMode) String() string {
	switch m {
	case SyncVideoMaster:
		return "video"
	case SyncExternalClock:
		return "external"
	}
	return "audio"
}

var timeStart = time.Now()

// wallClock returns monotonic seconds.
func wallClock() float64 {
	return time.Since(timeStart).Seconds()
}

// clockSet holds the audio, video and external clocks.
// Values are written by a single goroutine each and read by any goroutine.
type clockSet struct {
	mode     SyncMode
	hasAudio bool
	hasVideo bool
	now      func() float64

	// audio
	audioClock       atomicFloat64
	audioPending     atomicFloat64
	audioBytesPerSec float64
	audioLatency     func() int

	// video
	videoCurrentPTS      atomicFloat64
	videoCurrentPTSDrift atomicFloat64

	mutex             sync.Mutex
	paused            bool
	externalClock     float64
	externalClockTime float64
}

func (c *clockSet) isPaused() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.paused
}

// setAudio is called by the audio callback after every copy.
func (c *clockSet) setAudio(pts float64, pendingBytes int) {
	c.audioClock.store(pts)
	c.audioPending.store(float64(pendingBytes))
}

func (c *clockSet) audio() float64 {
	pts := c.audioClock.load()
	if c.audioBytesPerSec <= 0 {
		return pts
	}

	pending := c.audioPending.load()
	if c.audioLatency != nil {
		pending += float64(c.audioLatency())
	}

	return pts - pending/c.audioBytesPerSec
}

// setVideo is called by the refresh scheduler when a picture is displayed.
func (c *clockSet) setVideo(pts float64, now float64) {
	c.videoCurrentPTS.store(pts)
	c.videoCurrentPTSDrift.store(pts - now)
}

func (c *clockSet) video() float64 {
	if c.isPaused() {
		return c.videoCurrentPTS.load()
	}
	return c.videoCurrentPTSDrift.load() + c.now()
}

func (c *clockSet) setExternal(v float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.externalClock = v
	c.externalClockTime = c.now()
}

func (c *clockSet) external() float64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.paused {
		return c.externalClock
	}
	return c.externalClock + (c.now() - c.externalClockTime)
}

// setPaused freezes or unfreezes the video and external clocks.
func (c *clockSet) setPaused(paused bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if paused == c.paused {
		return
	}

	now := c.now()

	if paused {
		c.externalClock += now - c.externalClockTime
	} else {
		c.videoCurrentPTSDrift.store(c.videoCurrentPTS.load() - now)
	}

	c.externalClockTime = now
	c.paused = paused
}

func (c *clockSet) videoIsSlave() bool {
	return (c.mode == SyncAudioMaster && c.hasAudio) || c.mode == SyncExternalClock
}

func (c *clockSet) audioIsSlave() bool {
	return (c.mode == SyncVideoMaster && c.hasVideo) || c.mode == SyncExternalClock
}

func (c *clockSet) master() float64 {
	switch c.mode {
	case SyncVideoMaster:
		if c.hasVideo {
			return c.video()
		}
		return c.audio()

	case SyncAudioMaster:
		if c.hasAudio {
			return c.audio()
		}
		return c.video()

	default:
		return c.external()
	}
}
