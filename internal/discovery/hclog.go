package discovery

import (
	"bytes"
	"io"
	"log"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// hcLogger adapts logger.Logger to hclog.Logger so memberlist output ends
// up in the application log with proper levels.
type hcLogger struct {
	logger logger.Logger
	name   string
	args   []any
}

var _ hclog.Logger = (*hcLogger)(nil)

func newHCLogger(l logger.Logger) *hcLogger {
	return &hcLogger{logger: l, name: "memberlist"}
}

func (l *hcLogger) Log(level hclog.Level, msg string, args ...any) {
	switch level {
	case hclog.Trace, hclog.Debug:
		l.Debug(msg, args...)
	case hclog.Warn:
		l.Warn(msg, args...)
	case hclog.Error:
		l.Error(msg, args...)
	default:
		l.Info(msg, args...)
	}
}

func (l *hcLogger) Trace(msg string, args ...any) { l.Debug(msg, args...) }
func (l *hcLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, l.merge(args)...) }
func (l *hcLogger) Info(msg string, args ...any)  { l.logger.Info(msg, l.merge(args)...) }
func (l *hcLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, l.merge(args)...) }
func (l *hcLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.merge(args)...) }

func (l *hcLogger) merge(args []any) []any {
	if len(l.args) == 0 {
		return args
	}
	return append(append([]any(nil), l.args...), args...)
}

func (l *hcLogger) IsTrace() bool { return false }
func (l *hcLogger) IsDebug() bool { return logger.GetLevel() == "debug" }
func (l *hcLogger) IsInfo() bool  { return true }
func (l *hcLogger) IsWarn() bool  { return true }
func (l *hcLogger) IsError() bool { return true }

func (l *hcLogger) ImpliedArgs() []any { return l.args }

func (l *hcLogger) With(args ...any) hclog.Logger {
	return &hcLogger{logger: l.logger, name: l.name, args: l.merge(args)}
}

func (l *hcLogger) Name() string { return l.name }

func (l *hcLogger) Named(name string) hclog.Logger {
	return &hcLogger{logger: l.logger, name: l.name + "." + name, args: l.args}
}

func (l *hcLogger) ResetNamed(name string) hclog.Logger {
	return &hcLogger{logger: l.logger, name: name, args: l.args}
}

func (l *hcLogger) SetLevel(hclog.Level) {}

func (l *hcLogger) GetLevel() hclog.Level {
	if l.IsDebug() {
		return hclog.Debug
	}
	return hclog.Info
}

func (l *hcLogger) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(l.StandardWriter(opts), "", 0)
}

func (l *hcLogger) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	infer := opts != nil && opts.InferLevels
	return &stdWriter{l: l, infer: infer}
}

// stdWriter turns standard log lines such as "[WARN] memberlist: ..." into
// leveled records.
type stdWriter struct {
	l     *hcLogger
	infer bool
}

func (w *stdWriter) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, "\r\n"))
	level := hclog.Info
	if w.infer {
		level, line = splitLevel(line)
	}
	w.l.Log(level, line)
	return len(p), nil
}

func splitLevel(line string) (hclog.Level, string) {
	prefixes := []struct {
		tag   string
		level hclog.Level
	}{
		{"[TRACE]", hclog.Trace},
		{"[DEBUG]", hclog.Debug},
		{"[INFO]", hclog.Info},
		{"[WARN]", hclog.Warn},
		{"[ERR]", hclog.Error},
		{"[ERROR]", hclog.Error},
	}
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(line, p.tag); ok {
			return p.level, strings.TrimSpace(rest)
		}
	}
	return hclog.Info, line
}
