package conf

import (
	"encoding/json"
	"fmt"
)

// AudioOutput is the audioOutput parameter.
type AudioOutput string

// supported audio outputs.
const (
	AudioOutputOto  AudioOutput = "oto"
	AudioOutputNull AudioOutput = "null"
	AudioOutputNone AudioOutput = "none"
)

// UnmarshalJSON implements json.Unmarshaler.
func (d *AudioOutput) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	switch AudioOutput(in) {
	case AudioOutputOto, AudioOutputNull, AudioOutputNone:
		*d = AudioOutput(in)

	default:
		return fmt.Errorf("invalid audio output: '%s'", in)
	}

	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *AudioOutput) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}
