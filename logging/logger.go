package logging

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/crytic/schlau/logging/colors"
	"github.com/rs/zerolog"
)

// GlobalLogger is disabled until the CLI configures it. Packages derive their own sub-logger from it so that log
// lines can be filtered by the "module" key.
var GlobalLogger = NewLogger(zerolog.Disabled, false)

// Logger sends log events to a colorized console stream and to any number of additional writers.
type Logger struct {
	// level is the minimum level emitted by both loggers.
	level zerolog.Level

	// context holds the key-value pairs added through NewSubLogger, so they survive writer changes.
	context []string

	// consoleEnabled indicates whether consoleLogger writes to stdout.
	consoleEnabled bool

	// consoleLogger writes human-readable, colorized output to stdout.
	consoleLogger zerolog.Logger

	// multiLogger writes to every entry in writers, each in its own format.
	multiLogger zerolog.Logger

	// writers are the additional channels, already wrapped for their LogFormat.
	writers []io.Writer

	// rawWriters are the writers as provided by the caller, used to detect duplicates and removals.
	rawWriters []io.Writer
}

// LogFormat describes how a writer receives log events.
type LogFormat string

const (
	// STRUCTURED emits one JSON object per event.
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED emits plain console-style lines without ANSI coloring.
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo is a key-value mapping attached to a log event under the "info" key.
type StructuredLogInfo map[string]any

// NewLogger creates a Logger with the given level. If consoleEnabled is set, events are also rendered to stdout.
func NewLogger(level zerolog.Level, consoleEnabled bool, writers ...io.Writer) *Logger {
	l := &Logger{
		level:          level,
		consoleEnabled: consoleEnabled,
	}
	for _, w := range writers {
		l.rawWriters = append(l.rawWriters, w)
		l.writers = append(l.writers, w)
	}
	l.rebuild()
	return l
}

// rebuild recreates the underlying zerolog loggers from the current level, context and writers.
func (l *Logger) rebuild() {
	multi := zerolog.New(io.Discard).Level(zerolog.Disabled)
	if len(l.writers) > 0 {
		multi = zerolog.New(zerolog.MultiLevelWriter(l.writers...)).Level(l.level).With().Timestamp().Logger()
	}

	console := zerolog.New(io.Discard).Level(zerolog.Disabled)
	if l.consoleEnabled {
		console = zerolog.New(consoleWriter(os.Stdout, l.level)).Level(l.level)
	}

	for i := 0; i+1 < len(l.context); i += 2 {
		multi = multi.With().Str(l.context[i], l.context[i+1]).Logger()
		console = console.With().Str(l.context[i], l.context[i+1]).Logger()
	}

	l.multiLogger = multi
	l.consoleLogger = console
}

// NewSubLogger returns a copy of the logger that tags every event with the provided key-value pair.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	sub := &Logger{
		level:          l.level,
		context:        append(slices.Clone(l.context), key, value),
		consoleEnabled: l.consoleEnabled,
		writers:        slices.Clone(l.writers),
		rawWriters:     slices.Clone(l.rawWriters),
	}
	sub.rebuild()
	return sub
}

// AddWriter adds a writer in the given format. Adding a writer that is already registered is a no-op.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat) {
	if slices.Contains(l.rawWriters, writer) {
		return
	}

	wrapped := writer
	if format == UNSTRUCTURED {
		wrapped = zerolog.ConsoleWriter{Out: writer, NoColor: true}
	}
	l.rawWriters = append(l.rawWriters, writer)
	l.writers = append(l.writers, wrapped)
	l.rebuild()
}

// RemoveWriter removes a previously added writer. Unknown writers are ignored.
func (l *Logger) RemoveWriter(writer io.Writer) {
	i := slices.Index(l.rawWriters, writer)
	if i < 0 {
		return
	}
	l.rawWriters = slices.Delete(l.rawWriters, i, i+1)
	l.writers = slices.Delete(l.writers, i, i+1)
	l.rebuild()
}

// EnableConsole toggles rendering to stdout.
func (l *Logger) EnableConsole(enabled bool) {
	l.consoleEnabled = enabled
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel changes the log level of the logger. Sub-loggers created earlier keep their own level.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.rebuild()
}

// Trace logs a trace event.
func (l *Logger) Trace(args ...any) {
	l.emit(l.consoleLogger.Trace(), l.multiLogger.Trace(), l.level <= zerolog.DebugLevel, args)
}

// Debug logs a debug event.
func (l *Logger) Debug(args ...any) {
	l.emit(l.consoleLogger.Debug(), l.multiLogger.Debug(), l.level <= zerolog.DebugLevel, args)
}

// Info logs an info event.
func (l *Logger) Info(args ...any) {
	l.emit(l.consoleLogger.Info(), l.multiLogger.Info(), l.level <= zerolog.DebugLevel, args)
}

// Warn logs a warning event.
func (l *Logger) Warn(args ...any) {
	l.emit(l.consoleLogger.Warn(), l.multiLogger.Warn(), l.level <= zerolog.DebugLevel, args)
}

// Error logs an error event.
func (l *Logger) Error(args ...any) {
	l.emit(l.consoleLogger.Error(), l.multiLogger.Error(), l.level <= zerolog.DebugLevel, args)
}

// Panic logs a panic event to every channel and then panics.
func (l *Logger) Panic(args ...any) {
	l.emit(l.consoleLogger.Panic(), l.multiLogger.Panic(), true, args)
}

// emit attaches the error and structured info found in args to both events and sends them. The multi-logger event
// is sent last so that it is still written when the console event panics.
func (l *Logger) emit(consoleEvent *zerolog.Event, multiEvent *zerolog.Event, withStack bool, args []any) {
	consoleMsg, plainMsg, err, info := buildMsgs(args...)

	consoleEvent.Err(err)
	multiEvent.Err(err)
	if withStack && err != nil {
		consoleEvent.Stack()
		multiEvent.Stack()
	}

	if info != nil {
		consoleEvent.Any("info", info)
		multiEvent.Any("info", info)
	}

	defer multiEvent.Msg(plainMsg)
	consoleEvent.Msg(consoleMsg)
}

// buildMsgs concatenates args into a colorized console message and a plain message. ColorFunc arguments switch the
// color of the values that follow, while an error or StructuredLogInfo argument is returned separately instead of
// being rendered. Only the last error and info are kept.
func buildMsgs(args ...any) (string, string, error, StructuredLogInfo) {
	var (
		colorCtx colors.ColorFunc = colors.Reset
		console  strings.Builder
		plain    strings.Builder
		info     StructuredLogInfo
		err      error
	)
	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			colorCtx = t
		case StructuredLogInfo:
			info = t
		case error:
			err = t
		default:
			console.WriteString(colorCtx(t))
			plain.WriteString(fmt.Sprintf("%v", t))
		}
	}
	return console.String(), plain.String(), err, info
}

// consoleWriter renders events for a terminal: no timestamps, a colored marker per level and, above debug level,
// no module field.
func consoleWriter(out io.Writer, level zerolog.Level) zerolog.ConsoleWriter {
	writer := zerolog.ConsoleWriter{Out: out}
	writer.FormatTimestamp = func(any) string {
		return ""
	}
	writer.FormatLevel = func(i any) string {
		s, _ := i.(string)
		lvl, err := zerolog.ParseLevel(s)
		if err != nil {
			return s
		}
		switch lvl {
		case zerolog.TraceLevel:
			return colors.CyanBold(zerolog.LevelTraceValue)
		case zerolog.DebugLevel:
			return colors.BlueBold(zerolog.LevelDebugValue)
		case zerolog.InfoLevel:
			return colors.GreenBold(colors.RIGHT_ARROW)
		case zerolog.WarnLevel:
			return colors.YellowBold(zerolog.LevelWarnValue)
		case zerolog.ErrorLevel:
			return colors.RedBold(zerolog.LevelErrorValue)
		case zerolog.FatalLevel:
			return colors.RedBold(zerolog.LevelFatalValue)
		case zerolog.PanicLevel:
			return colors.RedBold(zerolog.LevelPanicValue)
		default:
			return s
		}
	}
	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{"module", "sandbox"}
	}
	return writer
}
