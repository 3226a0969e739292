package manager

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/backend/synth"
	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/defs"
	"github.com/bluenviron/avplay/internal/externalcmd"
	"github.com/bluenviron/avplay/internal/test"
)

func newConf(t *testing.T, overrides string) *conf.Conf {
	var c conf.Conf
	err := json.Unmarshal([]byte(overrides), &c)
	require.NoError(t, err)
	return &c
}

func newManager(t *testing.T, c *conf.Conf) (*Manager, *externalcmd.Pool) {
	reg := &backend.Registry{}
	reg.Register("synth", synth.Backend{})

	pool := &externalcmd.Pool{}
	pool.Initialize()

	m := &Manager{
		Conf:            c,
		Registry:        reg,
		ExternalCmdPool: pool,
		Parent:          test.NilLogger,
	}
	err := m.Initialize()
	require.NoError(t, err)

	return m, pool
}

func waitEvent(t *testing.T, s *Subscription, typ string) defs.APIEvent {
	for {
		select {
		case ev, ok := <-s.Events():
			require.True(t, ok)
			if ev.Type == typ {
				return ev
			}

		case <-time.After(10 * time.Second):
			t.Fatalf("event %s not received", typ)
		}
	}
}

func TestOpenPlayFinish(t *testing.T) {
	m, pool := newManager(t, newConf(t, `{"refreshPeriod":"5ms"}`))
	defer pool.Close()
	defer m.Close()

	sub := m.Subscribe()
	defer sub.Close()

	e, err := m.Open("synth://?duration=400ms&fps=25&width=16&height=16&title=mytitle")
	require.NoError(t, err)
	require.Equal(t, "synth", e.Backend)

	item := e.APIItem()
	require.Equal(t, e.ID, item.ID)
	require.True(t, item.Paused)
	require.True(t, item.HasVideo)
	require.False(t, item.HasAudio)
	require.Equal(t, []string{"video/rawvideo"}, item.Tracks)
	require.Equal(t, int64(400), item.Duration)
	require.Equal(t, "mytitle", item.Metadata.Title)

	err = e.Player.Play()
	require.NoError(t, err)

	ev := waitEvent(t, sub, "start")
	require.Equal(t, e.ID, ev.PlayerID)

	ev = waitEvent(t, sub, "finish")
	require.Equal(t, e.ID, ev.PlayerID)

	require.NotZero(t, e.Snapshot.Frames())
}

func TestGetListClose(t *testing.T) {
	m, pool := newManager(t, newConf(t, `{}`))
	defer pool.Close()
	defer m.Close()

	e1, err := m.Open("synth://?duration=10s")
	require.NoError(t, err)

	e2, err := m.Open("synth://?duration=10s&audio=true")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	require.Equal(t, e1.ID, list[0].ID)
	require.Equal(t, e2.ID, list[1].ID)

	e, err := m.Get(e2.ID)
	require.NoError(t, err)
	require.Same(t, e2, e)
	require.True(t, e.APIItem().HasAudio)

	err = m.ClosePlayer(e1.ID)
	require.NoError(t, err)

	_, err = m.Get(e1.ID)
	require.Equal(t, ErrPlayerNotFound, err)

	err = m.ClosePlayer(e1.ID)
	require.Equal(t, ErrPlayerNotFound, err)

	m.CloseAll()
	require.Empty(t, m.List())
}

func TestOpenUnsupported(t *testing.T) {
	m, pool := newManager(t, newConf(t, `{}`))
	defer pool.Close()
	defer m.Close()

	_, err := m.Open("foo://bar")
	require.ErrorIs(t, err, backend.ErrUnsupportedURL)
	require.Empty(t, m.List())
}

func TestOpenNoAudioOutput(t *testing.T) {
	m, pool := newManager(t, newConf(t, `{"audioOutput":"none"}`))
	defer pool.Close()
	defer m.Close()

	// audio-only media can't be played without an audio output
	_, err := m.Open("synth://?video=false&audio=true")
	require.Error(t, err)

	e, err := m.Open("synth://?audio=true")
	require.NoError(t, err)
	require.False(t, e.APIItem().HasAudio)
}

func TestSubscriptionClosedWithManager(t *testing.T) {
	m, pool := newManager(t, newConf(t, `{}`))
	defer pool.Close()

	sub := m.Subscribe()
	m.Close()

	_, ok := <-sub.Events()
	require.False(t, ok)

	// closing after the manager is a no-op
	sub.Close()

	_, err := m.Open("synth://")
	require.Error(t, err)
}

func TestHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unsupported")
	}

	dir := t.TempDir()
	onOpen := filepath.Join(dir, "onopen")
	onFinish := filepath.Join(dir, "onfinish")

	c := newConf(t, `{"refreshPeriod":"5ms"}`)
	c.RunOnOpen = "sh -c 'echo -n $AVPLAY_URL > " + onOpen + "'"
	c.RunOnFinish = "sh -c 'echo -n $AVPLAY_PLAYER_ID > " + onFinish + "'"

	m, pool := newManager(t, c)
	defer pool.Close()
	defer m.Close()

	e, err := m.Open("synth://?duration=200ms")
	require.NoError(t, err)

	err = e.Player.Play()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		byts, err := os.ReadFile(onFinish)
		return err == nil && string(byts) == e.ID.String()
	}, 10*time.Second, 50*time.Millisecond)

	byts, err := os.ReadFile(onOpen)
	require.NoError(t, err)
	require.Equal(t, "synth://?duration=200ms", string(byts))
}
