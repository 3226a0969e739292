package conf

import (
	"encoding/json"
	"strconv"

	"code.cloudfoundry.org/bytefmt"
)

// StringSize is a size parameter, like maxQueueSize.
// It is written with a unit ("15MB", "320KB") or as a number of bytes.
type StringSize uint64

// MarshalJSON implements json.Marshaler.
func (s StringSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(bytefmt.ByteSize(uint64(s)))
}

func (s *StringSize) parse(in string) error {
	if n, err := strconv.ParseUint(in, 10, 64); err == nil {
		*s = StringSize(n)
		return nil
	}

	v, err := bytefmt.ToBytes(in)
	if err != nil {
		return err
	}

	*s = StringSize(v)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringSize) UnmarshalJSON(b []byte) error {
	var n uint64
	if err := json.Unmarshal(b, &n); err == nil {
		*s = StringSize(n)
		return nil
	}

	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	return s.parse(in)
}

// UnmarshalEnv implements env.Unmarshaler.
func (s *StringSize) UnmarshalEnv(_ string, v string) error {
	return s.parse(v)
}
