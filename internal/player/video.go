package player

import (
	"image"
	"math"

	"github.com/bluenviron/avplay/internal/av"
)

func (p *Player) initVideo() {
	st := p.Source.VideoStream

	p.filters = newFilterChain(p.Conf.Autorotate, st.Rotation)
	p.scaler = scaler{
		outWidth:  p.Conf.OutputWidth,
		outHeight: p.Conf.OutputHeight,
	}
	p.ptsCorr.reset()
	p.skipFrames.store(1)

	p.videoTimeBase = st.TimeBase.Float64()
	if fr := st.FrameRate.Float64(); fr > 0 {
		p.videoFrameDelay = 1 / fr
	} else {
		p.videoFrameDelay = p.videoTimeBase
	}
}

func (p *Player) runVideo() {
	defer p.wg.Done()

	for {
		err := p.decodeVideoPacket()
		if err != nil {
			return
		}
	}
}

func (p *Player) decodeVideoPacket() error {
	pkt, res := p.videoq.get(true)
	if res == getAborted {
		return errQueueAborted
	}
	defer p.videoq.done()

	if isFlushPacket(pkt) {
		p.flushVideo()
		return nil
	}

	frames, err := p.Source.VideoDecoder.Decode(pkt)
	if err != nil {
		p.decodeErrors.Increase()
		return nil
	}

	for _, frame := range frames {
		pts := p.ptsCorr.guess(frame.PTS, frame.PktDTS)
		if pts == av.NoPTS {
			pts = 0
		}

		if !p.skipFrame() {
			p.framesDropped.Add(1)
			continue
		}

		err = p.outputPicture(frame, float64(pts)*p.videoTimeBase, pkt.Pos)
		if err != nil {
			return err
		}
	}

	return nil
}

// skipFrame returns true if the frame must be output.
func (p *Player) skipFrame() bool {
	skip := p.skipFrames.load()
	p.skipFramesIndex++

	if p.skipFramesIndex >= skip {
		p.skipFramesIndex -= math.Max(skip, 1)
		return true
	}
	return false
}

func (p *Player) flushVideo() {
	p.Source.VideoDecoder.Flush()

	p.pictq.clearTargets()
	if p.clocks.isPaused() {
		p.pictq.discard()
	} else {
		p.pictq.waitEmpty()
	}

	p.currentPos.Store(-1)
	p.ptsCorr.reset()

	p.timingMutex.Lock()
	p.frameLastPTS = float64(av.NoPTS)
	p.frameLastDelay = 0
	if p.clocks.isPaused() {
		// shifted to the current time on resume
		p.frameTimer = p.pausedAt
	} else {
		p.frameTimer = p.now()
	}
	p.timingMutex.Unlock()

	p.skipFrames.store(1)
	p.skipFramesIndex = 0

	if p.hooks != nil && p.hooks.onFlush != nil {
		p.hooks.onFlush()
	}
}

func (p *Player) outputPicture(frame *av.VideoFrame, pts float64, pos int64) error {
	if pts != 0 {
		p.videoClock.store(pts)
	} else {
		pts = p.videoClock.load()
	}

	delay := p.videoFrameDelay
	delay += float64(frame.RepeatPict) * (delay * 0.5)
	p.videoClock.store(p.videoClock.load() + delay)

	return p.queuePicture(frame.Image, pts, pos)
}

func (p *Player) queuePicture(img image.Image, pts float64, pos int64) error {
	if p.pictq.full() && !p.refreshPending.Load() {
		f := 1 - p.Conf.FrameSkipFactor
		p.skipFrames.update(func(v float64) float64 {
			return math.Max(f, v*f)
		})
	}

	img = p.filters.apply(img)

	pic, ok := p.pictq.reserve()
	if !ok {
		return errQueueAborted
	}

	w, h := p.scaler.ensure(img)
	p.scaler.scale(img, pic.nextBuffer(w, h))
	pic.pts = pts
	pic.pos = pos

	p.pictq.publish(func(pic *picture) {
		pic.targetClock = p.computeTargetTime(pic.pts)

		if p.hooks != nil && p.hooks.onPicture != nil {
			p.hooks.onPicture(pic.pts, pic.targetClock)
		}
	})

	return nil
}

// computeTargetTime returns the wall-clock time at which a picture must be displayed.
func (p *Player) computeTargetTime(framePTS float64) float64 {
	p.timingMutex.Lock()
	defer p.timingMutex.Unlock()

	delay := framePTS - p.frameLastPTS
	if delay <= 0 || delay >= p.noSync {
		delay = p.frameLastDelay
	} else {
		p.frameLastDelay = delay
	}
	p.frameLastPTS = framePTS

	if p.clocks.videoIsSlave() {
		diff := p.clocks.video() - p.clocks.master()
		threshold := math.Max(syncThreshold, delay)

		if math.Abs(diff) < p.noSync {
			switch {
			case diff <= -threshold:
				delay = 0
			case diff >= threshold:
				delay = 2 * delay
			}
		}
	}

	p.frameTimer += delay
	return p.frameTimer
}
