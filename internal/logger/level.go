package logger

// Level is a log level.
type Level int

// Log levels.
const (
	Debug Level = iota + 1
	Info
	Warn
	Error
)

// code returns the three-letter code printed in front of each entry.
func (l Level) code() string {
	switch l {
	case Debug:
		return "DEB"
	case Info:
		return "INF"
	case Warn:
		return "WAR"
	case Error:
		return "ERR"
	}
	return "???"
}
