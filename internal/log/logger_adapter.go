package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"firestige.xyz/dissect/internal/config"
)

const (
	defaultPattern = "%time %level %msg\n"
	defaultTime    = "2006-01-02T15:04:05.000000Z07:00"
)

type logrusAdapter struct {
	entry *logrus.Entry
}

// Init builds the process logger from cfg and installs it.
func Init(cfg config.LogConfig) error {
	l, err := New(cfg, colorable.NewColorableStdout())
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// New builds a logger writing to out plus the optional rotating file.
func New(cfg config.LogConfig, out io.Writer) (Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "pattern":
		pattern := cfg.Pattern
		if pattern == "" {
			pattern = defaultPattern
		}
		timeLayout := cfg.Time
		if timeLayout == "" {
			timeLayout = defaultTime
		}
		l.SetFormatter(&formatter{pattern: pattern, time: timeLayout})
	case "prefixed":
		l.SetFormatter(&prefixed.TextFormatter{
			ForceColors:     isTerminal(out),
			DisableColors:   !isTerminal(out),
			FullTimestamp:   true,
			TimestampFormat: timeLayoutOr(cfg.Time),
		})
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be pattern or prefixed)", cfg.Format)
	}

	w := NewMultiWriter().Add(out)
	if cfg.File.Path != "" {
		w.AddFileAppender(FileAppenderOpt{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}
	l.SetOutput(w)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}

func timeLayoutOr(layout string) string {
	if layout == "" {
		return defaultTime
	}
	return layout
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd())
	}
	// colorable wraps stdout; treat it as stdout.
	return isatty.IsTerminal(os.Stdout.Fd())
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) GetEntry() *logrus.Entry { return l.entry }

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
