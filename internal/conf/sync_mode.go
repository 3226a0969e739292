package conf

import (
	"encoding/json"
	"fmt"

	"github.com/bluenviron/avplay/internal/player"
)

// SyncMode is the syncMode parameter.
type SyncMode player.SyncMode

// MarshalJSON implements json.Marshaler.
func (d SyncMode) MarshalJSON() ([]byte, error) {
	switch player.SyncMode(d) {
	case player.SyncAudioMaster, player.SyncVideoMaster, player.SyncExternalClock:
		return json.Marshal(player.SyncMode(d).String())
	}
	return nil, fmt.Errorf("invalid sync mode: %v", int(d))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *SyncMode) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	switch in {
	case "audio":
		*d = SyncMode(player.SyncAudioMaster)

	case "video":
		*d = SyncMode(player.SyncVideoMaster)

	case "external":
		*d = SyncMode(player.SyncExternalClock)

	default:
		return fmt.Errorf("invalid sync mode: '%s'", in)
	}

	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *SyncMode) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}
