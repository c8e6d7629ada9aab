// Basic logging infrastructure that we can share and evolve.

package status

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"sync"
)

// LogLevel indicates the level of logging that should be done.

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
	LogLevelCritical
)

// Implementations of this must be thread-safe.
type Logger interface {
	// Print only messages at level l or above
	SetLevel(l LogLevel)

	// Lower log level at least to l
	LowerLevelTo(l LogLevel)

	// Print on this stream, if installed
	SetStderr(w io.Writer)

	// Print on this underlying (simpler) logger, if installed - often syslog.
	SetUnderlying(w UnderlyingLogger)

	// Print at various levels.  None of these must exit or panic, the name indicates the log level
	// only.
	Debug(xs ...any)
	Debugf(format string, args ...any)

	Info(xs ...any)
	Infof(format string, args ...any)

	Warning(xs ...any)
	Warningf(format string, args ...any)

	Error(xs ...any)
	Errorf(format string, args ...any)

	Critical(xs ...any)
	Criticalf(format string, args ...any)
}

// Typically the underlying logger would be a syslog thing, and it has a simpler interface.  In
// particular, log/syslog implements UnderlyingLogger.  An underlying logger must be thread-safe.
type UnderlyingLogger interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Crit(m string) error
}

type StandardLogger struct {
	sync.Mutex
	level      LogLevel
	stderr     io.Writer
	underlying UnderlyingLogger
}

// MT: Constant after initialization, thread-safe.
var defaultLogger Logger = &StandardLogger{
	level:  LogLevelError,
	stderr: os.Stderr,
}

func Default() Logger {
	return defaultLogger
}

func (sl *StandardLogger) SetLevel(l LogLevel) {
	sl.Lock()
	defer sl.Unlock()

	sl.level = l
}

func (sl *StandardLogger) LowerLevelTo(l LogLevel) {
	sl.Lock()
	defer sl.Unlock()

	if sl.level > l {
		sl.level = l
	}
}

func (sl *StandardLogger) SetStderr(stderr io.Writer) {
	sl.Lock()
	defer sl.Unlock()

	sl.stderr = stderr
}

func (sl *StandardLogger) SetUnderlying(underlying UnderlyingLogger) {
	sl.Lock()
	defer sl.Unlock()

	sl.underlying = underlying
}

// The emitters must hold the lock, both for the level check and because the stderr writer is not
// otherwise synchronized.

func (sl *StandardLogger) emit(l LogLevel, s string) {
	if sl.stderr != nil {
		fmt.Fprintln(sl.stderr, s)
	}
	if sl.underlying != nil {
		switch l {
		case LogLevelDebug:
			sl.underlying.Debug(s)
		case LogLevelInfo:
			sl.underlying.Info(s)
		case LogLevelWarning:
			sl.underlying.Warning(s)
		case LogLevelError:
			sl.underlying.Err(s)
		default:
			sl.underlying.Crit(s)
		}
	}
}

func (sl *StandardLogger) print(l LogLevel, xs ...any) {
	sl.Lock()
	defer sl.Unlock()

	if sl.level >= l {
		sl.emit(l, fmt.Sprint(xs...))
	}
}

func (sl *StandardLogger) printf(l LogLevel, format string, args ...any) {
	sl.Lock()
	defer sl.Unlock()

	if sl.level >= l {
		sl.emit(l, fmt.Sprintf(format, args...))
	}
}

func (sl *StandardLogger) Critical(xs ...any) { sl.print(LogLevelCritical, xs...) }
func (sl *StandardLogger) Criticalf(format string, args ...any) {
	sl.printf(LogLevelCritical, format, args...)
}

func (sl *StandardLogger) Error(xs ...any) { sl.print(LogLevelError, xs...) }
func (sl *StandardLogger) Errorf(format string, args ...any) {
	sl.printf(LogLevelError, format, args...)
}

func (sl *StandardLogger) Warning(xs ...any) { sl.print(LogLevelWarning, xs...) }
func (sl *StandardLogger) Warningf(format string, args ...any) {
	sl.printf(LogLevelWarning, format, args...)
}

func (sl *StandardLogger) Info(xs ...any) { sl.print(LogLevelInfo, xs...) }
func (sl *StandardLogger) Infof(format string, args ...any) {
	sl.printf(LogLevelInfo, format, args...)
}

func (sl *StandardLogger) Debug(xs ...any) { sl.print(LogLevelDebug, xs...) }
func (sl *StandardLogger) Debugf(format string, args ...any) {
	sl.printf(LogLevelDebug, format, args...)
}

// Connect the default logger to the Unix syslog daemon under the given tag.  The priority (INFO) is
// a placeholder, it is overridden by the individual logger methods.

func Start(logTag string) {
	logger, err := syslog.Dial("", "", syslog.LOG_INFO|syslog.LOG_USER, logTag)
	if err != nil {
		Fatal(err.Error())
	}
	defaultLogger.SetUnderlying(logger)
}

func Fatal(msg string) {
	defaultLogger.Critical(msg)
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	defaultLogger.Criticalf(format, args...)
	os.Exit(1)
}
