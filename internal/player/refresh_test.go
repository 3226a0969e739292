package player

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/av"
	"github.com/bluenviron/avplay/internal/test"
)

func newTimingTestPlayer(ft *fakeTime, mode SyncMode, hasAudio bool) *Player {
	p := &Player{
		Conf: Conf{
			FrameSkipGrowth: 1.05,
		},
		now:      ft.now,
		noSync:   10,
		hasVideo: true,
		hasAudio: hasAudio,
		clocks: &clockSet{
			mode:     mode,
			hasVideo: true,
			hasAudio: hasAudio,
			now:      ft.now,
		},
		pictq: newPictureQueue(),
	}
	p.frameLastPTS = float64(av.NoPTS)
	p.frameTimer = ft.t
	p.skipFrames.store(1)
	return p
}

func TestComputeTargetTimeVideoMaster(t *testing.T) {
	ft := &fakeTime{t: 100}
	p := newTimingTestPlayer(ft, SyncVideoMaster, false)

	var targets []float64
	for _, pts := range []float64{0, 0.04, 0.08, 0.08, 0.2, 50} {
		targets = append(targets, p.computeTargetTime(pts))
	}

	require.InDelta(t, 100, targets[0], 1e-9)
	require.InDelta(t, 100.04, targets[1], 1e-9)
	require.InDelta(t, 100.08, targets[2], 1e-9)
	// repeated timestamp uses the previous delay
	require.InDelta(t, 100.12, targets[3], 1e-9)
	require.InDelta(t, 100.24, targets[4], 1e-9)
	// timestamp jump uses the previous delay
	require.InDelta(t, 100.36, targets[5], 1e-9)

	for i := 1; i < len(targets); i++ {
		require.GreaterOrEqual(t, targets[i], targets[i-1])
	}
}

func TestComputeTargetTimeSlave(t *testing.T) {
	ft := &fakeTime{t: 100}
	p := newTimingTestPlayer(ft, SyncAudioMaster, true)
	p.clocks.audioBytesPerSec = 1000

	p.clocks.setVideo(0, ft.t)
	p.clocks.setAudio(0, 0)
	p.computeTargetTime(0)
	p.computeTargetTime(0.04)
	require.InDelta(t, 100.08, p.computeTargetTime(0.08), 1e-9)

	// video clock is late, display immediately
	p.clocks.setAudio(1, 0)
	require.InDelta(t, 100.08, p.computeTargetTime(0.12), 1e-9)

	// video clock is early, slow down
	p.clocks.setAudio(0, 0)
	p.clocks.setVideo(1, ft.t)
	require.InDelta(t, 100.16, p.computeTargetTime(0.16), 1e-9)

	// out of sync, nominal delay
	p.clocks.setAudio(20, 0)
	p.clocks.setVideo(0, ft.t)
	require.InDelta(t, 100.20, p.computeTargetTime(0.2), 1e-9)

	// clocks in sync, the frame timestamp alone does not change the delay
	p.clocks.setAudio(0.5, 0)
	p.clocks.setVideo(0.5, ft.t)
	require.InDelta(t, 100.24, p.computeTargetTime(0.24), 1e-9)
}

func pushPicture(p *Player, pts float64, target float64) {
	pic, _ := p.pictq.reserve()
	buf := pic.nextBuffer(1, 1)
	buf[2] = byte(pts * 100)
	pic.pts = pts
	p.pictq.publish(func(pic *picture) {
		pic.targetClock = target
	})
	p.videoClock.store(pts + 0.04)
}

func TestRefreshTickWaitsTarget(t *testing.T) {
	ft := &fakeTime{t: 0.99}
	p := newTimingTestPlayer(ft, SyncVideoMaster, false)
	rec := &test.FrameRecorder{}
	p.FrameSink = rec

	pushPicture(p, 0, 1)

	p.refreshTick()
	require.Empty(t, rec.Frames())

	ft.t = 1.01
	p.refreshTick()
	require.Len(t, rec.Frames(), 1)
	require.Equal(t, 0, p.pictq.size())
	require.InDelta(t, 0, p.clocks.video(), 1e-9)
}

func TestRefreshTickFramedrop(t *testing.T) {
	for _, framedrop := range []bool{false, true} {
		t.Run(map[bool]string{false: "disabled", true: "enabled"}[framedrop], func(t *testing.T) {
			ft := &fakeTime{t: 1}
			p := newTimingTestPlayer(ft, SyncVideoMaster, false)
			p.Conf.Framedrop = framedrop
			rec := &test.FrameRecorder{}
			p.FrameSink = rec

			pushPicture(p, 0, 1)
			pushPicture(p, 0.04, 1.04)

			ft.t = 1.05
			p.refreshTick()

			frames := rec.Frames()
			require.Len(t, frames, 1)

			if framedrop {
				require.Equal(t, byte(4), frames[0].FirstPixel[2])
				require.Equal(t, uint64(1), p.framesDropped.Load())
				require.InDelta(t, 1.05, p.skipFrames.load(), 1e-9)
				require.Equal(t, 0, p.pictq.size())
			} else {
				require.Equal(t, byte(0), frames[0].FirstPixel[2])
				require.Equal(t, uint64(0), p.framesDropped.Load())
				require.Equal(t, 1, p.pictq.size())
			}
		})
	}
}

func TestRefreshTickPaused(t *testing.T) {
	ft := &fakeTime{t: 2}
	p := newTimingTestPlayer(ft, SyncVideoMaster, false)
	rec := &test.FrameRecorder{}
	p.FrameSink = rec
	p.clocks.setPaused(true)

	pushPicture(p, 0, 1)
	p.refreshTick()
	require.Empty(t, rec.Frames())
}

func TestRefreshTickAudioOnly(t *testing.T) {
	ft := &fakeTime{t: 2}
	p := newTimingTestPlayer(ft, SyncAudioMaster, true)
	p.hasVideo = false
	rec := &test.FrameRecorder{}
	p.FrameSink = rec

	p.refreshTick()
	p.refreshTick()
	require.Equal(t, 2, rec.EmptyRefreshes())
}

func TestSkipFrame(t *testing.T) {
	p := &Player{}

	p.skipFrames.store(1)
	for i := 0; i < 10; i++ {
		require.True(t, p.skipFrame())
	}

	p.skipFrames.store(2)
	p.skipFramesIndex = 0
	var out []bool
	for i := 0; i < 6; i++ {
		out = append(out, p.skipFrame())
	}
	require.Equal(t, []bool{false, true, false, true, false, true}, out)

	p.skipFrames.store(0.95)
	p.skipFramesIndex = 0
	for i := 0; i < 10; i++ {
		require.True(t, p.skipFrame())
	}
}
