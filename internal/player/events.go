package player

// Event is a playback event.
type Event int

// events.
const (
	EventStart Event = iota
	EventPause
	EventResume
	EventStop
	EventFinish
)

// String implements fmt.Stringer.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventStop:
		return "stop"
	case EventFinish:
		return "finish"
	}
	return "unknown"
}

// MediaEventSink receives playback events.
type MediaEventSink interface {
	OnEvent(Event)
}

// FrameSink receives displayed pictures as BGRA.
// Players without video call it with a nil buffer on every refresh.
// buf is only valid during the call.
type FrameSink interface {
	OnFrame(buf []byte, width int, height int)
}
