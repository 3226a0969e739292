package conf

import (
	"os"
	"testing"
	"time"

	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/player"
	"github.com/bluenviron/avplay/internal/test"
	"github.com/stretchr/testify/require"
)

func TestConfFromFile(t *testing.T) {
	func() {
		tmpf, err := test.CreateTempFile([]byte("logLevel: debug\n" +
			"syncMode: video\n" +
			"framedrop: no\n" +
			"maxQueueSize: 8MiB\n" +
			"refreshPeriod: 20ms\n" +
			"backends: [mpegts, synth]\n"))
		require.NoError(t, err)
		defer os.Remove(tmpf)

		conf, confPath, err := Load(tmpf, nil)
		require.NoError(t, err)
		require.Equal(t, tmpf, confPath)

		require.Equal(t, LogLevel(logger.Debug), conf.LogLevel)
		require.Equal(t, SyncMode(player.SyncVideoMaster), conf.SyncMode)
		require.False(t, conf.Framedrop)
		require.Equal(t, StringSize(8*1024*1024), conf.MaxQueueSize)
		require.Equal(t, StringDuration(20*time.Millisecond), conf.RefreshPeriod)
		require.Equal(t, []string{"mpegts", "synth"}, conf.Backends)

		// untouched fields keep their defaults
		require.True(t, conf.Autorotate)
		require.Equal(t, ":9996", conf.APIAddress)
		require.Equal(t, StringSize(320*1024), conf.MinAudioQueueSize)
	}()

	func() {
		tmpf, err := test.CreateTempFile([]byte(""))
		require.NoError(t, err)
		defer os.Remove(tmpf)

		_, _, err = Load(tmpf, nil)
		require.NoError(t, err)
	}()
}

func TestConfDefaults(t *testing.T) {
	conf, confPath, err := Load("", []string{"/nonexistent/avplay.yml"})
	require.NoError(t, err)
	require.Equal(t, "", confPath)

	require.Equal(t, LogDestinations{logger.DestinationStdout}, conf.LogDestinations)
	require.Equal(t, AudioOutputNull, conf.AudioOutput)
	require.Equal(t, []string{"synth", "mpegts", "libav"}, conf.Backends)

	pconf := conf.PlayerConf()
	require.Equal(t, player.Conf{
		SyncMode:           player.SyncAudioMaster,
		Framedrop:          true,
		Autorotate:         true,
		AudioBufferSamples: 1024,
		MaxQueueSize:       15 * 1024 * 1024,
		MinAudioQueueSize:  320 * 1024,
		MinFrames:          5,
		RefreshPeriod:      60 * time.Millisecond,
		FrameSkipFactor:    0.05,
		FrameSkipGrowth:    1.05,
		NoSyncThreshold:    10 * time.Second,
	}, pconf)
}

func TestConfFromEnvironment(t *testing.T) {
	t.Setenv("AVPLAY_SYNCMODE", "external")
	t.Setenv("AVPLAY_LOOP", "yes")
	t.Setenv("AVPLAY_OUTPUTWIDTH", "320")
	t.Setenv("AVPLAY_LOGDESTINATIONS", "stdout,file")
	t.Setenv("AVPLAY_NOSYNCTHRESHOLD", "5s")

	conf, _, err := Load("", nil)
	require.NoError(t, err)

	require.Equal(t, SyncMode(player.SyncExternalClock), conf.SyncMode)
	require.True(t, conf.Loop)
	require.Equal(t, 320, conf.OutputWidth)
	require.Equal(t, LogDestinations{logger.DestinationStdout, logger.DestinationFile}, conf.LogDestinations)
	require.Equal(t, StringDuration(5*time.Second), conf.NoSyncThreshold)
}

func TestConfErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		conf string
		err  string
	}{
		{
			"unknown field",
			"unknown: yes\n",
			"json: unknown field \"unknown\"",
		},
		{
			"invalid sync mode",
			"syncMode: random\n",
			"invalid sync mode: 'random'",
		},
		{
			"invalid audio output",
			"audioOutput: speaker\n",
			"invalid audio output: 'speaker'",
		},
		{
			"invalid backend",
			"backends: [rtsp]\n",
			"invalid backend: 'rtsp'",
		},
		{
			"duplicate backend",
			"backends: [synth, synth]\n",
			"backend 'synth' is listed twice",
		},
		{
			"no backends",
			"backends: []\n",
			"at least one backend must be enabled",
		},
		{
			"frame skip factor",
			"frameSkipFactor: 1.5\n",
			"'frameSkipFactor' must be between 0 and 1",
		},
		{
			"audio channels",
			"audioChannels: 6\n",
			"'audioChannels' must be 1 or 2",
		},
		{
			"queue sizes",
			"maxQueueSize: 100KiB\n",
			"'minAudioQueueSize' must not exceed 'maxQueueSize'",
		},
		{
			"password without user",
			"apiPass: secret\n",
			"'apiPass' requires 'apiUser'",
		},
		{
			"duplicate log destination",
			"logDestinations: [stdout, stdout]\n",
			"log destination set twice",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			tmpf, err := test.CreateTempFile([]byte(ca.conf))
			require.NoError(t, err)
			defer os.Remove(tmpf)

			_, _, err = Load(tmpf, nil)
			require.EqualError(t, err, ca.err)
		})
	}
}

func TestConfClone(t *testing.T) {
	conf, _, err := Load("", nil)
	require.NoError(t, err)

	err = conf.APIUser.UnmarshalEnv("", "admin")
	require.NoError(t, err)
	conf.Backends = []string{"libav"}

	clone := conf.Clone()
	require.Equal(t, conf, clone)

	clone.Backends[0] = "synth"
	require.Equal(t, []string{"libav"}, conf.Backends)
}
