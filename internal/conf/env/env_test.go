package env

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type myDuration time.Duration

func (d *myDuration) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	du, err := time.ParseDuration(in)
	if err != nil {
		return err
	}
	*d = myDuration(du)

	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *myDuration) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}

type testStruct struct {
	LogFile       string     `json:"logFile"`
	MinFrames     int        `json:"minFrames"`
	SkipFactor    float64    `json:"frameSkipFactor"`
	Framedrop     bool       `json:"framedrop"`
	RefreshPeriod myDuration `json:"refreshPeriod"`
	Backends      []string   `json:"backends"`
	Empty         []string   `json:"empty"`
	Untouched     string     `json:"untouched"`
	Skipped       string     `json:"-"`
}

func TestLoad(t *testing.T) {
	env := map[string]string{
		"AVPLAY_LOGFILE":         "/tmp/avplay.log",
		"AVPLAY_MINFRAMES":       "8",
		"AVPLAY_FRAMESKIPFACTOR": "0.1",
		"AVPLAY_FRAMEDROP":       "no",
		"AVPLAY_REFRESHPERIOD":   "20ms",
		"AVPLAY_BACKENDS":        "libav,synth",
		"AVPLAY_EMPTY":           "",
		"AVPLAY_-":               "x",
	}

	s := testStruct{
		Framedrop: true,
		Empty:     []string{"a"},
		Untouched: "keep",
	}

	err := loadWithEnv(env, "AVPLAY", &s)
	require.NoError(t, err)

	require.Equal(t, testStruct{
		LogFile:       "/tmp/avplay.log",
		MinFrames:     8,
		SkipFactor:    0.1,
		Framedrop:     false,
		RefreshPeriod: myDuration(20 * time.Millisecond),
		Backends:      []string{"libav", "synth"},
		Empty:         []string{},
		Untouched:     "keep",
	}, s)
}

func TestLoadErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		key  string
		val  string
		err  string
	}{
		{
			"int",
			"AVPLAY_MINFRAMES",
			"abc",
			"AVPLAY_MINFRAMES: strconv.ParseInt: parsing \"abc\": invalid syntax",
		},
		{
			"bool",
			"AVPLAY_FRAMEDROP",
			"maybe",
			"AVPLAY_FRAMEDROP: invalid value 'maybe'",
		},
		{
			"unmarshaler",
			"AVPLAY_REFRESHPERIOD",
			"never",
			"AVPLAY_REFRESHPERIOD: time: invalid duration \"never\"",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var s testStruct
			err := loadWithEnv(map[string]string{ca.key: ca.val}, "AVPLAY", &s)
			require.EqualError(t, err, ca.err)
		})
	}
}
