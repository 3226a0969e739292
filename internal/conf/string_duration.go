package conf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// StringDuration is a duration parameter.
// It is written as a Go duration string ("20ms", "5s")
// or as a number of seconds.
type StringDuration time.Duration

// MarshalJSON implements json.Marshaler.
func (d StringDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *StringDuration) parse(in string) error {
	if secs, err := strconv.ParseFloat(in, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("negative duration: %v", in)
		}
		*d = StringDuration(secs * float64(time.Second))
		return nil
	}

	du, err := time.ParseDuration(in)
	if err != nil {
		return err
	}
	if du < 0 {
		return fmt.Errorf("negative duration: %v", in)
	}

	*d = StringDuration(du)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *StringDuration) UnmarshalJSON(b []byte) error {
	var secs float64
	if err := json.Unmarshal(b, &secs); err == nil {
		return d.parse(strconv.FormatFloat(secs, 'f', -1, 64))
	}

	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	return d.parse(in)
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *StringDuration) UnmarshalEnv(_ string, v string) error {
	return d.parse(v)
}
