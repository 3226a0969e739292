// Package defs contains shared definitions.
package defs

import (
	"time"

	"github.com/google/uuid"

	"github.com/bluenviron/avplay/internal/av"
)

// APIError is a generic error.
type APIError struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// APIOK is a generic success response.
type APIOK struct {
	Status string `json:"status"`
}

// APIInfo is a info response.
type APIInfo struct {
	Version  string    `json:"version"`
	Started  time.Time `json:"started"`
	Backends []string  `json:"backends"`
}

// APIPlayer is a player.
type APIPlayer struct {
	ID              uuid.UUID   `json:"id"`
	Created         time.Time   `json:"created"`
	URL             string      `json:"url"`
	Backend         string      `json:"backend"`
	Paused          bool        `json:"paused"`
	Loop            bool        `json:"loop"`
	Position        int64       `json:"position"`
	Duration        int64       `json:"duration"`
	DecodeRate      float64     `json:"decodeRate"`
	HasVideo        bool        `json:"hasVideo"`
	HasAudio        bool        `json:"hasAudio"`
	Tracks          []string    `json:"tracks"`
	Metadata        av.Metadata `json:"metadata"`
	FramesDisplayed uint64      `json:"framesDisplayed"`
	FramesDropped   uint64      `json:"framesDropped"`
	DecodeErrors    uint64      `json:"decodeErrors"`
}

// APIPlayerList is a list of players.
type APIPlayerList struct {
	ItemCount int          `json:"itemCount"`
	PageCount int          `json:"pageCount"`
	Items     []*APIPlayer `json:"items"`
}

// APIPlayerOpenReq is a request to open a player.
type APIPlayerOpenReq struct {
	URL      string `json:"url"`
	Autoplay bool   `json:"autoplay"`
}

// APIPlayerSeekReq is a seek request.
type APIPlayerSeekReq struct {
	// position in milliseconds.
	Position *int64 `json:"position"`
}

// APIPlayerLoopReq is a request to change the loop flag.
type APIPlayerLoopReq struct {
	Loop *bool `json:"loop"`
}

// APIPlayerRateReq is a request to change the decode rate.
type APIPlayerRateReq struct {
	Rate *float64 `json:"rate"`
}

// APIEvent is a playback event.
type APIEvent struct {
	PlayerID uuid.UUID `json:"playerId"`
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
}
