package log

import (
	gosiplog "github.com/ghettovoice/gosip/log"
	"github.com/sirupsen/logrus"
)

// GosipAdapter lets the gosip parser log through a dissect logrus entry.
type GosipAdapter struct {
	entry  *logrus.Entry
	prefix string
}

func NewGosipAdapter(l Logger) *GosipAdapter {
	return &GosipAdapter{entry: l.GetEntry()}
}

func (a *GosipAdapter) Fields() gosiplog.Fields {
	return gosiplog.Fields(a.entry.Data)
}

func (a *GosipAdapter) WithFields(fields map[string]interface{}) gosiplog.Logger {
	return &GosipAdapter{entry: a.entry.WithFields(fields), prefix: a.prefix}
}

func (a *GosipAdapter) Prefix() string {
	return a.prefix
}

func (a *GosipAdapter) WithPrefix(prefix string) gosiplog.Logger {
	return &GosipAdapter{entry: a.entry.WithField("prefix", prefix), prefix: prefix}
}

// Parser chatter below error level, such as skipped malformed headers, is
// dropped so that decoded messages are the only per-frame output.
func (a *GosipAdapter) Print(args ...interface{})                 {}
func (a *GosipAdapter) Printf(format string, args ...interface{}) {}
func (a *GosipAdapter) Trace(args ...interface{})                 {}
func (a *GosipAdapter) Tracef(format string, args ...interface{}) {}
func (a *GosipAdapter) Debug(args ...interface{})                 {}
func (a *GosipAdapter) Debugf(format string, args ...interface{}) {}
func (a *GosipAdapter) Info(args ...interface{})                  {}
func (a *GosipAdapter) Infof(format string, args ...interface{})  {}
func (a *GosipAdapter) Warn(args ...interface{})                  {}
func (a *GosipAdapter) Warnf(format string, args ...interface{})  {}
func (a *GosipAdapter) Error(args ...interface{})                 { a.entry.Error(args...) }
func (a *GosipAdapter) Errorf(format string, args ...interface{}) { a.entry.Errorf(format, args...) }
func (a *GosipAdapter) Fatal(args ...interface{})                 { a.entry.Fatal(args...) }
func (a *GosipAdapter) Fatalf(format string, args ...interface{}) { a.entry.Fatalf(format, args...) }
func (a *GosipAdapter) Panic(args ...interface{})                 { a.entry.Panic(args...) }
func (a *GosipAdapter) Panicf(format string, args ...interface{}) { a.entry.Panicf(format, args...) }

// SetLevel is a no-op; the level is owned by the dissect logger.
func (a *GosipAdapter) SetLevel(level uint32) {}
