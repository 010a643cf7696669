package clog

import "fmt"
import "io"
import "os"
import "path/filepath"
import "strings"
import "sync"
import "time"

import "github.com/sirgallo/grsfs/pkg/utils"


//=========================================== Custom Log


var outputMutex sync.Mutex
var output io.Writer = os.Stdout
var minLevel = Info
var colored = true


func NewCustomLog(name string) *CustomLog {
	return &CustomLog{ Name: name }
}

/*
	Set Level
		process wide threshold, anything below the level is dropped
*/

func SetLevel(level LogLevel) {
	outputMutex.Lock()
	defer outputMutex.Unlock()

	if _, ok := levelRank[level]; ok { minLevel = level }
}

func ParseLevel(level string) (LogLevel, error) {
	for candidate := range levelRank {
		if strings.EqualFold(string(candidate), level) { return candidate, nil }
	}

	return Info, fmt.Errorf("unknown log level: %s", level)
}

func SetOutput(writer io.Writer) {
	setOutput(writer, writer == os.Stdout || writer == os.Stderr)
}

func setOutput(writer io.Writer, color bool) {
	outputMutex.Lock()
	defer outputMutex.Unlock()

	output = writer
	colored = color
}

/*
	Open Log File
		logs for a node are written to <dir>/<host>.<port>.log
*/

func OpenLogFile(dir string, host string, port int) (*os.File, error) {
	mkdirErr := os.MkdirAll(dir, 0755)
	if mkdirErr != nil { return nil, mkdirErr }

	path := filepath.Join(dir, fmt.Sprintf("%s.%d.log", host, port))
	file, openErr := os.OpenFile(path, os.O_CREATE | os.O_WRONLY | os.O_APPEND, 0644)
	if openErr != nil { return nil, openErr }

	setOutput(file, false)

	return file, nil
}

func (cLog *CustomLog) Debug(msg ...interface{}) {
	cLog.formatOutput(Debug, msg)
} 

func (cLog *CustomLog) Info(msg ...interface{}) {
	cLog.formatOutput(Info, msg)
} 

func (cLog *CustomLog) Warn(msg ...interface{}) {
	cLog.formatOutput(Warn, msg)
}

func (cLog *CustomLog) Error(msg ...interface{}) {
	cLog.formatOutput(Error, msg)
} 

func (cLog *CustomLog) Fatal(msg ...interface{}) {
	cLog.formatOutput(Fatal, msg)
	os.Exit(1)
}

func (cLog *CustomLog) formatOutput(level LogLevel, msg []interface{}) {
	outputMutex.Lock()
	defer outputMutex.Unlock()

	if levelRank[level] < levelRank[minLevel] { return }

	formattedTime := time.Now().Format("2006-01-02 15:04:05.000")

	encodedMsg := func () string {
		encodeTransform := func(chunk interface{}) string {
			if str, ok := chunk.(string); ok { return str }
			if err, ok := chunk.(error); ok { return err.Error() }

			encoded, _ := utils.EncodeStructToString[interface{}](chunk)
			return encoded
		}
	
		return strings.Join(utils.Map[interface{}, string](msg, encodeTransform), " ")
	}()

	if ! colored {
		fmt.Fprintf(output, "[%s](%s) %s: %s\n", cLog.Name, formattedTime, level, encodedMsg)
		return
	}

	color := func () LogColor {
		switch level {
			case Debug:
				return DebugColor
			case Info:
				return InfoColor
			case Warn:
				return WarnColor
			case Error:
				return ErrorColor
			default:
				return FatalColor
		}
	}()

	fmt.Fprintf(output, "%s[%s](%s) %s: %s\n", color, cLog.Name, formattedTime, Bold + string(level), Reset + encodedMsg)
}
