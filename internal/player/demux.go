package player

import (
	"errors"
	"math"
	"time"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/logger"
)

// requestSeek schedules a seek to pos. rel is the distance from the current position.
// Requests are ignored while another one is pending.
func (p *Player) requestSeek(pos int64, rel int64) {
	p.seekMutex.Lock()
	defer p.seekMutex.Unlock()

	if !p.seekReq {
		p.seekReq = true
		p.seekPos = pos
		p.seekRel = rel
	}
}

func (p *Player) takeSeekRequest() (int64, int64, bool) {
	p.seekMutex.Lock()
	defer p.seekMutex.Unlock()

	if !p.seekReq {
		return 0, 0, false
	}

	p.seekReq = false
	return p.seekPos, p.seekRel, true
}

func (p *Player) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-p.terminate:
		return false
	}
}

func (p *Player) runDemux() {
	defer p.wg.Done()

	eof := false
	finished := false

	for {
		if p.aborted.Load() {
			return
		}

		if pos, rel, ok := p.takeSeekRequest(); ok {
			p.seek(pos, rel)
			eof = false
			finished = false
		}

		if p.clocks.isPaused() || finished || p.queuesFull() {
			if !p.sleep(10 * time.Millisecond) {
				return
			}
			continue
		}

		if eof {
			p.putDrainPackets()

			if !p.sleep(10 * time.Millisecond) {
				return
			}

			if p.drained() {
				if p.loop.Load() {
					p.requestSeek(p.startTime(), 0)
				} else {
					finished = true
					p.Log(logger.Info, "end of media")
					p.emit(EventFinish)
				}
			}
			continue
		}

		pkt, err := p.Source.Demuxer.ReadPacket()
		if err != nil {
			if p.aborted.Load() {
				return
			}
			if !errors.Is(err, av.ErrEOF) {
				p.Log(logger.Error, "read error: %v", err)
			}
			eof = true
			continue
		}

		p.dispatch(pkt)
	}
}

func (p *Player) seek(pos int64, rel int64) {
	minPos := int64(math.MinInt64)
	if rel > 0 {
		minPos = pos - rel + 2
	}

	maxPos := int64(math.MaxInt64)
	if rel < 0 {
		maxPos = pos - rel - 2
	}

	err := p.Source.Demuxer.Seek(minPos, pos, maxPos)
	if err != nil {
		p.Log(logger.Error, "error while seeking: %v", err)
		return
	}

	if p.hasAudio {
		p.audioq.flush()
		p.audioq.put(flushPacket) //nolint:errcheck
	}
	if p.hasVideo {
		p.videoq.flush()
		p.videoq.put(flushPacket) //nolint:errcheck
	}

	p.clocks.setExternal(float64(pos) / av.TimeBase)
}

func (p *Player) queuesFull() bool {
	size := 0
	if p.hasAudio {
		size += p.audioq.byteSize()
	}
	if p.hasVideo {
		size += p.videoq.byteSize()
	}

	if size > p.Conf.MaxQueueSize {
		return true
	}

	return (!p.hasAudio || p.audioq.byteSize() > p.Conf.MinAudioQueueSize) &&
		(!p.hasVideo || p.videoq.len() > p.Conf.MinFrames)
}

func (p *Player) putDrainPackets() {
	if p.hasVideo {
		p.videoq.put(&av.Packet{ //nolint:errcheck
			StreamIndex: p.Source.VideoStream.Index,
			PTS:         av.NoPTS,
			DTS:         av.NoPTS,
			Pos:         -1,
		})
	}

	if p.hasAudio && p.Source.AudioDecoder.HasDelay() {
		p.audioq.put(&av.Packet{ //nolint:errcheck
			StreamIndex: p.Source.AudioStream.Index,
			PTS:         av.NoPTS,
			DTS:         av.NoPTS,
			Pos:         -1,
		})
	}
}

// drained returns true when every queued packet and picture of the
// active streams has been consumed.
func (p *Player) drained() bool {
	if p.hasAudio && !p.audioq.idle() {
		return false
	}
	return !p.hasVideo || (p.videoq.idle() && p.pictq.size() == 0)
}

func (p *Player) dispatch(pkt *av.Packet) {
	switch {
	case p.hasVideo && pkt.StreamIndex == p.Source.VideoStream.Index:
		p.videoq.put(pkt) //nolint:errcheck

	case p.hasAudio && pkt.StreamIndex == p.Source.AudioStream.Index:
		p.audioq.put(pkt) //nolint:errcheck
	}
}
