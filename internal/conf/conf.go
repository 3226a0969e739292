// Package conf contains the configuration of the player.
package conf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bluenviron/avplay/internal/conf/env"
	"github.com/bluenviron/avplay/internal/conf/yamlwrapper"
	"github.com/bluenviron/avplay/internal/logger"
	"github.com/bluenviron/avplay/internal/player"
)

// EnvPrefix is the prefix of environment variables that override the configuration.
const EnvPrefix = "AVPLAY"

var defaultBackends = []string{"synth", "mpegts", "libav"}

func firstThatExists(paths []string) string {
	for _, pa := range paths {
		_, err := os.Stat(pa)
		if err == nil {
			return pa
		}
	}
	return ""
}

// Conf is a configuration.
type Conf struct {
	// Logging
	LogLevel        LogLevel        `json:"logLevel"`
	LogDestinations LogDestinations `json:"logDestinations"`
	LogStructured   bool            `json:"logStructured"`
	LogFile         string          `json:"logFile"`

	// Playback
	SyncMode   SyncMode `json:"syncMode"`
	Framedrop  bool     `json:"framedrop"`
	Loop       bool     `json:"loop"`
	Autorotate bool     `json:"autorotate"`

	// Output
	OutputWidth  int `json:"outputWidth"`
	OutputHeight int `json:"outputHeight"`

	// Audio
	AudioOutput        AudioOutput `json:"audioOutput"`
	AudioSampleRate    int         `json:"audioSampleRate"`
	AudioChannels      int         `json:"audioChannels"`
	AudioBufferSamples int         `json:"audioBufferSamples"`

	// Queues and timing
	MaxQueueSize      StringSize     `json:"maxQueueSize"`
	MinAudioQueueSize StringSize     `json:"minAudioQueueSize"`
	MinFrames         int            `json:"minFrames"`
	RefreshPeriod     StringDuration `json:"refreshPeriod"`

	// Sync tuning
	FrameSkipFactor float64        `json:"frameSkipFactor"`
	FrameSkipGrowth float64        `json:"frameSkipGrowth"`
	NoSyncThreshold StringDuration `json:"noSyncThreshold"`

	// Backends
	Backends []string `json:"backends"`

	// HTTP servers
	API            bool           `json:"api"`
	APIAddress     string         `json:"apiAddress"`
	APIUser        Credential     `json:"apiUser"`
	APIPass        Credential     `json:"apiPass"`
	Metrics        bool           `json:"metrics"`
	MetricsAddress string         `json:"metricsAddress"`
	PPROF          bool           `json:"pprof"`
	PPROFAddress   string         `json:"pprofAddress"`
	ReadTimeout    StringDuration `json:"readTimeout"`
	WriteTimeout   StringDuration `json:"writeTimeout"`

	// Hooks
	RunOnOpen   string `json:"runOnOpen"`
	RunOnFinish string `json:"runOnFinish"`
}

func (conf *Conf) setDefaults() {
	// Logging
	conf.LogLevel = LogLevel(logger.Info)
	conf.LogDestinations = LogDestinations{logger.DestinationStdout}
	conf.LogStructured = false
	conf.LogFile = "avplay.log"

	// Playback
	conf.SyncMode = SyncMode(player.SyncAudioMaster)
	conf.Framedrop = true
	conf.Loop = false
	conf.Autorotate = true

	// Audio
	conf.AudioOutput = AudioOutputNull
	conf.AudioSampleRate = 48000
	conf.AudioChannels = 2
	conf.AudioBufferSamples = 1024

	// Queues and timing
	conf.MaxQueueSize = 15 * 1024 * 1024
	conf.MinAudioQueueSize = 320 * 1024
	conf.MinFrames = 5
	conf.RefreshPeriod = StringDuration(60 * time.Millisecond)

	// Sync tuning
	conf.FrameSkipFactor = 0.05
	conf.FrameSkipGrowth = 1.05
	conf.NoSyncThreshold = StringDuration(10 * time.Second)

	// Backends
	conf.Backends = append([]string(nil), defaultBackends...)

	// HTTP servers
	conf.API = true
	conf.APIAddress = ":9996"
	conf.MetricsAddress = ":9998"
	conf.PPROFAddress = ":9999"
	conf.ReadTimeout = StringDuration(10 * time.Second)
	conf.WriteTimeout = StringDuration(10 * time.Second)
}

// Load loads a Conf.
// It returns the path of the file that was actually read, if any.
func Load(fpath string, defaultConfPaths []string) (*Conf, string, error) {
	conf := &Conf{}

	fpath, err := conf.loadFromFile(fpath, defaultConfPaths)
	if err != nil {
		return nil, "", err
	}

	err = env.Load(EnvPrefix, conf)
	if err != nil {
		return nil, "", err
	}

	err = conf.Validate()
	if err != nil {
		return nil, "", err
	}

	return conf, fpath, nil
}

func (conf *Conf) loadFromFile(fpath string, defaultConfPaths []string) (string, error) {
	if fpath == "" {
		fpath = firstThatExists(defaultConfPaths)

		// when the configuration file is not explicitly set,
		// it is optional.
		if fpath == "" {
			conf.setDefaults()
			return "", nil
		}
	}

	byts, err := os.ReadFile(fpath)
	if err != nil {
		return "", err
	}

	err = yamlwrapper.Unmarshal(byts, conf)
	if err != nil {
		return "", err
	}

	return fpath, nil
}

// Clone clones the configuration.
func (conf Conf) Clone() *Conf {
	enc, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}

	var dest Conf
	err = json.Unmarshal(enc, &dest)
	if err != nil {
		panic(err)
	}

	return &dest
}

// Validate checks the configuration for errors.
func (conf *Conf) Validate() error {
	if conf.LogDestinations.contains(logger.DestinationFile) && conf.LogFile == "" {
		return fmt.Errorf("'logFile' must be set when 'file' is a log destination")
	}

	if conf.OutputWidth < 0 || conf.OutputHeight < 0 {
		return fmt.Errorf("'outputWidth' and 'outputHeight' must not be negative")
	}

	if conf.AudioSampleRate <= 0 {
		return fmt.Errorf("'audioSampleRate' must be greater than zero")
	}
	if conf.AudioChannels < 1 || conf.AudioChannels > 2 {
		return fmt.Errorf("'audioChannels' must be 1 or 2")
	}
	if conf.AudioBufferSamples <= 0 {
		return fmt.Errorf("'audioBufferSamples' must be greater than zero")
	}

	if conf.MaxQueueSize == 0 {
		return fmt.Errorf("'maxQueueSize' must be greater than zero")
	}
	if conf.MinAudioQueueSize > conf.MaxQueueSize {
		return fmt.Errorf("'minAudioQueueSize' must not exceed 'maxQueueSize'")
	}
	if conf.MinFrames <= 0 {
		return fmt.Errorf("'minFrames' must be greater than zero")
	}
	if conf.RefreshPeriod <= 0 {
		return fmt.Errorf("'refreshPeriod' must be greater than zero")
	}

	if conf.FrameSkipFactor <= 0 || conf.FrameSkipFactor >= 1 {
		return fmt.Errorf("'frameSkipFactor' must be between 0 and 1")
	}
	if conf.FrameSkipGrowth < 1 {
		return fmt.Errorf("'frameSkipGrowth' must be greater or equal than 1")
	}
	if conf.NoSyncThreshold <= 0 {
		return fmt.Errorf("'noSyncThreshold' must be greater than zero")
	}

	if len(conf.Backends) == 0 {
		return fmt.Errorf("at least one backend must be enabled")
	}
	seen := make(map[string]struct{})
	for _, name := range conf.Backends {
		switch name {
		case "synth", "mpegts", "libav":
		default:
			return fmt.Errorf("invalid backend: '%s'", name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("backend '%s' is listed twice", name)
		}
		seen[name] = struct{}{}
	}

	if !conf.APIPass.IsEmpty() && conf.APIUser.IsEmpty() {
		return fmt.Errorf("'apiPass' requires 'apiUser'")
	}

	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (conf *Conf) UnmarshalJSON(b []byte) error {
	conf.setDefaults()

	type alias Conf
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	return d.Decode((*alias)(conf))
}

// PlayerConf returns the parameters of a new player.
func (conf *Conf) PlayerConf() player.Conf {
	return player.Conf{
		SyncMode:           player.SyncMode(conf.SyncMode),
		Framedrop:          conf.Framedrop,
		Loop:               conf.Loop,
		Autorotate:         conf.Autorotate,
		OutputWidth:        conf.OutputWidth,
		OutputHeight:       conf.OutputHeight,
		AudioBufferSamples: conf.AudioBufferSamples,
		MaxQueueSize:       int(conf.MaxQueueSize),
		MinAudioQueueSize:  int(conf.MinAudioQueueSize),
		MinFrames:          conf.MinFrames,
		RefreshPeriod:      time.Duration(conf.RefreshPeriod),
		FrameSkipFactor:    conf.FrameSkipFactor,
		FrameSkipGrowth:    conf.FrameSkipGrowth,
		NoSyncThreshold:    time.Duration(conf.NoSyncThreshold),
	}
}
