package clog


type CustomLog struct {
	Name string
}

type LogLevel string
type LogColor string 

const (
	Debug LogLevel = "Debug"
	Info LogLevel = "Info"
	Warn LogLevel = "Warn"
	Error LogLevel = "Error"
	Fatal LogLevel = "Fatal"
)

const Reset = "\033[0m"
const Bold = "\033[1m"

// ANSI escape codes for text colors
const (
	DebugColor LogColor = "\033[34m"
	InfoColor LogColor = "\033[32m"
	WarnColor LogColor = "\033[33m"
	ErrorColor LogColor = "\033[31m"
	FatalColor LogColor = "\033[35m"
)

var levelRank = map[LogLevel]int{
	Debug: 0,
	Info: 1,
	Warn: 2,
	Error: 3,
	Fatal: 4,
}
