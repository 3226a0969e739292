package manager

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/defs"
	"github.com/bluenviron/avplay/internal/externalcmd"
	"github.com/bluenviron/avplay/internal/framesink"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/player"
)

// Entry is a player tracked by the manager.
type Entry struct {
	ID       uuid.UUID
	URL      string
	Backend  string
	Created  time.Time
	Player   *player.Player
	Snapshot *framesink.Snapshot

	m         *Manager
	conf      *conf.Conf
	onOpenCmd *externalcmd.Cmd
}

func (e *Entry) env() externalcmd.Environment {
	return externalcmd.Environment{
		"AVPLAY_PLAYER_ID": e.ID.String(),
		"AVPLAY_URL":       e.URL,
	}
}

func (e *Entry) close() {
	if e.onOpenCmd != nil {
		e.onOpenCmd.Close()
		e.m.Log(logger.Info, "runOnOpen command stopped")
	}

	e.Player.Close()
}

// OnEvent implements player.MediaEventSink.
func (e *Entry) OnEvent(ev player.Event) {
	e.m.Log(logger.Debug, "player %s: %s", e.ID, ev)

	e.m.dispatch(defs.APIEvent{
		PlayerID: e.ID,
		Type:     ev.String(),
		Time:     time.Now(),
	})

	if ev == player.EventFinish && e.conf.RunOnFinish != "" {
		e.m.Log(logger.Info, "runOnFinish command launched")
		cmd := &externalcmd.Cmd{
			Pool:    e.m.ExternalCmdPool,
			Cmdstr:  e.conf.RunOnFinish,
			Restart: false,
			Env:     e.env(),
			OnExit: func(err error) {
				e.m.Log(logger.Info, "runOnFinish command exited: %v", err)
			},
		}
		cmd.Initialize()
	}
}

// APIItem returns the API representation of the player.
func (e *Entry) APIItem() *defs.APIPlayer {
	st := e.Player.State()

	var tracks []string
	if src := e.Player.Source; src != nil {
		if st.HasVideo {
			tracks = append(tracks, fmt.Sprintf("video/%s", src.VideoStream.Codec))
		}
		if st.HasAudio {
			tracks = append(tracks, fmt.Sprintf("audio/%s", src.AudioStream.Codec))
		}
	}

	return &defs.APIPlayer{
		ID:              e.ID,
		Created:         e.Created,
		URL:             e.URL,
		Backend:         e.Backend,
		Paused:          st.Paused,
		Loop:            st.Loop,
		Position:        st.Position,
		Duration:        st.Duration,
		DecodeRate:      st.DecodeRate,
		HasVideo:        st.HasVideo,
		HasAudio:        st.HasAudio,
		Tracks:          tracks,
		Metadata:        e.Player.Metadata(),
		FramesDisplayed: st.FramesDisplayed,
		FramesDropped:   st.FramesDropped,
		DecodeErrors:    st.DecodeErrors,
	}
}
