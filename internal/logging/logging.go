// Package logging provides the single process-wide log level and the
// leveled Errorf/Warnf/Infof/Debugf/Tracef writers it gates. It has no
// effect on evaluation semantics (see the "Global state" design note);
// the compiler and the VM do not write through it.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

type Level int32

const (
	Off Level = iota
	Error
	Warn
	Info
	Debug
	Trace
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	case Trace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseLevel accepts the -l flag's argument.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "off":
		return Off, true
	case "error":
		return Error, true
	case "warn":
		return Warn, true
	case "info":
		return Info, true
	case "debug":
		return Debug, true
	case "trace":
		return Trace, true
	default:
		return Off, false
	}
}

var current int32 = int32(Warn)
var out io.Writer = os.Stderr

func SetLevel(l Level) { atomic.StoreInt32(&current, int32(l)) }
func GetLevel() Level  { return Level(atomic.LoadInt32(&current)) }

// SetOutput redirects log output; used by tests to capture trace lines.
func SetOutput(w io.Writer) { out = w }

func logf(l Level, format string, args ...interface{}) {
	if GetLevel() < l {
		return
	}
	fmt.Fprintf(out, "["+l.String()+"] "+format+"\n", args...)
}

func Errorf(format string, args ...interface{}) { logf(Error, format, args...) }
func Warnf(format string, args ...interface{})  { logf(Warn, format, args...) }
func Infof(format string, args ...interface{})  { logf(Info, format, args...) }
func Debugf(format string, args ...interface{}) { logf(Debug, format, args...) }
func Tracef(format string, args ...interface{}) { logf(Trace, format, args...) }
