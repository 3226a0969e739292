package conf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bluenviron/avplay/internal/logger"
)

var logLevelNames = map[logger.Level]string{
	logger.Error: "error",
	logger.Warn:  "warn",
	logger.Info:  "info",
	logger.Debug: "debug",
}

// LogLevel is the logLevel parameter.
type LogLevel logger.Level

// MarshalJSON implements json.Marshaler.
func (d LogLevel) MarshalJSON() ([]byte, error) {
	name, ok := logLevelNames[logger.Level(d)]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %v", int(d))
	}
	return json.Marshal(name)
}

func (d *LogLevel) parse(in string) error {
	in = strings.ToLower(in)

	for level, name := range logLevelNames {
		if name == in {
			*d = LogLevel(level)
			return nil
		}
	}

	return fmt.Errorf("invalid log level: '%s'", in)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LogLevel) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	return d.parse(in)
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *LogLevel) UnmarshalEnv(_ string, v string) error {
	return d.parse(v)
}
