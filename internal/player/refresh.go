package player

import (
	"time"
)

func (p *Player) runRefresh() {
	defer p.wg.Done()

	t := time.NewTicker(p.Conf.RefreshPeriod)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			p.refreshTick()

		case <-p.terminate:
			return
		}
	}
}

func (p *Player) refreshTick() {
	if !p.hasVideo {
		if p.FrameSink != nil {
			p.FrameSink.OnFrame(nil, 0, 0)
		}
		return
	}

	p.refreshPending.Store(true)
	defer p.refreshPending.Store(false)

	for {
		if p.clocks.isPaused() {
			return
		}

		pic, ok := p.pictq.acquire(false)
		if !ok {
			return
		}

		now := p.now()
		target := p.pictq.target(pic)
		if now < target {
			return
		}

		p.clocks.setVideo(pic.pts, now)
		p.currentPos.Store(pic.pos)

		nextTarget, ok := p.pictq.nextTarget()
		if !ok {
			nextTarget = target + p.videoClock.load() - pic.pts
		}

		if p.Conf.Framedrop && now > nextTarget {
			p.skipFrames.update(func(v float64) float64 {
				return v * p.Conf.FrameSkipGrowth
			})

			if p.pictq.size() > 1 || now > nextTarget+0.5 {
				p.pictq.release(pic)
				p.framesDropped.Add(1)
				continue
			}
		}

		p.display(pic)
		p.pictq.release(pic)
		return
	}
}

func (p *Player) display(pic *picture) {
	if p.FrameSink != nil {
		p.FrameSink.OnFrame(pic.pixels(), pic.width, pic.height)
	}
	p.framesDisplayed.Add(1)
}
