package core

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/avplay/internal/defs"
	"github.com/bluenviron/avplay/internal/player"
	"github.com/bluenviron/avplay/internal/test"
)

func newInstance(t *testing.T, confContent string, args ...string) (*Core, bool) {
	return New(append([]string{test.TempConf(t, confContent)}, args...))
}

func TestCoreAPI(t *testing.T) {
	p, ok := newInstance(t, "backends: [synth]\n"+
		"apiAddress: localhost:9996\n")
	require.True(t, ok)
	defer p.Close()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	hc := &http.Client{Transport: tr}

	res, err := hc.Get("http://localhost:9996/v1/info")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var info defs.APIInfo
	err = json.NewDecoder(res.Body).Decode(&info)
	require.NoError(t, err)
	require.Equal(t, version, info.Version)
	require.Equal(t, []string{"synth"}, info.Backends)
}

func TestCoreInvalidArgs(t *testing.T) {
	for _, ca := range []struct {
		name string
		conf string
		args []string
	}{
		{
			"invalid sync mode",
			"backends: [synth]\napi: no\n",
			[]string{"--sync", "invalid"},
		},
		{
			"unknown backend",
			"backends: [unknown]\napi: no\n",
			nil,
		},
		{
			"invalid configuration",
			"unknownField: yes\n",
			nil,
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			_, ok := newInstance(t, ca.conf, ca.args...)
			require.False(t, ok)
		})
	}
}

func TestCoreSyncOverride(t *testing.T) {
	p, ok := newInstance(t, "backends: [synth]\napi: no\nsyncMode: audio\n", "--sync", "external")
	require.True(t, ok)
	defer p.Close()

	require.Equal(t, player.SyncExternalClock, player.SyncMode(p.conf.SyncMode))
}

func TestCoreExitOnFinish(t *testing.T) {
	p, ok := newInstance(t, "backends: [synth]\n"+
		"api: no\n"+
		"refreshPeriod: 5ms\n",
		"--open", "synth://?duration=200ms",
		"--open", "synth://?duration=300ms&audio=true",
		"--exit-on-finish")
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		p.Close()
		t.Fatal("core did not exit")
	}
}

func TestCoreExitOnFinishNoPlayers(t *testing.T) {
	p, ok := newInstance(t, "backends: [synth]\napi: no\n",
		"--open", "foo://bar",
		"--exit-on-finish")
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		p.Close()
		t.Fatal("core did not exit")
	}
}

func TestCoreHotReload(t *testing.T) {
	confPath := test.TempConf(t, "backends: [synth]\n"+
		"apiAddress: localhost:9996\n")

	p, ok := New([]string{confPath})
	require.True(t, ok)
	defer p.Close()

	tr := &http.Transport{}
	defer tr.CloseIdleConnections()
	hc := &http.Client{Transport: tr}

	err := os.WriteFile(confPath, []byte("backends: [synth]\n"+
		"apiAddress: localhost:9996\n"+
		"metrics: yes\n"+
		"metricsAddress: localhost:9998\n"), 0o644)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		res, err2 := hc.Get("http://localhost:9998/metrics")
		if err2 != nil {
			return false
		}
		defer res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)
}
