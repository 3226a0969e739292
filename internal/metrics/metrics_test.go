package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/auth"
	"github.com/bluenviron/avplay/internal/backend"
	"github.com/bluenviron/avplay/internal/backend/synth"
	"github.com/bluenviron/avplay/internal/conf"
	"github.com/bluenviron/avplay/internal/externalcmd"
	"github.com/bluenviron/avplay/internal/manager"
	"github.com/bluenviron/avplay/internal/test"
)

func TestTags(t *testing.T) {
	require.Equal(t, `{a="1",b="2"}`, tags(map[string]string{"b": "2", "a": "1"}))
}

func TestMetrics(t *testing.T) {
	var cnf conf.Conf
	err := json.Unmarshal([]byte(`{}`), &cnf)
	require.NoError(t, err)

	reg := &backend.Registry{}
	reg.Register("synth", synth.Backend{})

	pool := &externalcmd.Pool{}
	pool.Initialize()
	defer pool.Close()

	man := &manager.Manager{
		Conf:            &cnf,
		Registry:        reg,
		ExternalCmdPool: pool,
		Parent:          test.NilLogger,
	}
	err = man.Initialize()
	require.NoError(t, err)
	defer man.Close()

	m := &Metrics{
		Address:      "localhost:9998",
		ReadTimeout:  conf.StringDuration(10 * time.Second),
		WriteTimeout: conf.StringDuration(10 * time.Second),
		AuthManager:  &auth.Manager{},
		Manager:      man,
		Parent:       test.NilLogger,
	}
	err = m.Initialize()
	require.NoError(t, err)
	defer m.Close()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	hc := &http.Client{Transport: tr}

	get := func() string {
		res, err2 := hc.Get("http://localhost:9998/metrics")
		require.NoError(t, err2)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)

		byts, err2 := io.ReadAll(res.Body)
		require.NoError(t, err2)
		return string(byts)
	}

	require.Equal(t, "players 0\n", get())

	e, err := man.Open("synth://?duration=10s")
	require.NoError(t, err)

	ta := `{backend="synth",id="` + e.ID.String() + `"}`

	out := get()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Equal(t, "players 1", lines[0])
	require.Contains(t, out, "player_paused"+ta+" 1\n")
	require.Contains(t, out, "player_frames_displayed"+ta+" 0\n")
	require.Contains(t, out, "player_frames_dropped"+ta+" ")
	require.Contains(t, out, "player_video_queue_packets"+ta+" ")
	require.Contains(t, out, "player_audio_queue_bytes"+ta+" ")
	require.Contains(t, out, "player_audio_video_diff_seconds"+ta+" ")
}

func TestMetricsAuth(t *testing.T) {
	var cnf conf.Conf
	err := json.Unmarshal([]byte(`{"apiUser":"myuser","apiPass":"mypass"}`), &cnf)
	require.NoError(t, err)

	m := &Metrics{
		Address:      "localhost:9998",
		ReadTimeout:  conf.StringDuration(10 * time.Second),
		WriteTimeout: conf.StringDuration(10 * time.Second),
		AuthManager:  &auth.Manager{User: cnf.APIUser, Pass: cnf.APIPass},
		Manager:      &manager.Manager{},
		Parent:       test.NilLogger,
	}
	err = m.Initialize()
	require.NoError(t, err)
	defer m.Close()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	hc := &http.Client{Transport: tr}

	res, err := hc.Get("http://localhost:9998/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, `Basic realm="avplay"`, res.Header.Get("WWW-Authenticate"))
}
