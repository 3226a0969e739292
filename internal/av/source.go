package av

import (
	"errors"
)

// ErrEOF is returned by Demuxer.ReadPacket at the end of the media.
var ErrEOF = errors.New("end of file")

// Metadata contains stream tags.
type Metadata struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Album    string `json:"album"`
	Genre    string `json:"genre"`
	Comments string `json:"comments"`
	Date     string `json:"date"`
}

// Set sets a field by tag name. Unknown tags are ignored.
func (m *Metadata) Set(key string, value string) {
	switch key {
	case "title":
		m.Title = value
	case "artist", "author":
		m.Author = value
	case "album":
		m.Album = value
	case "genre":
		m.Genre = value
	case "comment":
		m.Comments = value
	case "date", "creation_time":
		m.Date = value
	}
}

// Demuxer reads packets from a container.
type Demuxer interface {
	Streams() []*StreamInfo
	// ReadPacket returns ErrEOF at the end of the media.
	ReadPacket() (*Packet, error)
	// Seek seeks to a position, expressed in TimeBase units,
	// accepting any position inside [min, max].
	Seek(min int64, target int64, max int64) error
	// Duration returns the duration in TimeBase units, or NoPTS.
	Duration() int64
	// StartTime returns the start time in TimeBase units, or NoPTS.
	StartTime() int64
	Metadata() Metadata
	// Interrupt unblocks any pending I/O. It is safe to call from any goroutine.
	Interrupt()
	Close()
}

// VideoDecoder decodes video packets.
type VideoDecoder interface {
	Decode(pkt *Packet) ([]*VideoFrame, error)
	// Flush discards any buffered state.
	Flush()
	Close()
}

// AudioDecoder decodes audio packets.
type AudioDecoder interface {
	Decode(pkt *Packet) ([]*AudioFrame, error)
	Flush()
	// HasDelay returns true if the decoder buffers frames and must be drained at end of stream.
	HasDelay() bool
	Close()
}

// Source is an opened media.
type Source struct {
	Demuxer Demuxer

	VideoStream  *StreamInfo
	VideoDecoder VideoDecoder

	AudioStream  *StreamInfo
	AudioDecoder AudioDecoder
}

// Close closes decoders and demuxer.
func (s *Source) Close() {
	if s.VideoDecoder != nil {
		s.VideoDecoder.Close()
	}
	if s.AudioDecoder != nil {
		s.AudioDecoder.Close()
	}
	s.Demuxer.Close()
}
