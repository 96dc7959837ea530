package common

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// testLoggerAdapter maps log output onto testing.TB.Log so that logs only
// show up for failing tests, or with -v.
type testLoggerAdapter struct {
	t      testing.TB
	prefix string
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	n := len(d)
	if n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}
	if a.prefix != "" {
		a.t.Log(a.prefix + ": " + string(d))
		return n, nil
	}
	a.t.Log(string(d))
	return n, nil
}

// NewTestLogger returns a debug-level logger writing to t.
func NewTestLogger(t testing.TB) *logrus.Logger {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t}
	logger.Level = logrus.DebugLevel
	return logger
}

// NewTestEntry returns an entry of NewTestLogger tagged with prefix.
func NewTestEntry(t testing.TB, prefix string) *logrus.Entry {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t, prefix: prefix}
	logger.Level = logrus.DebugLevel
	return logger.WithField("prefix", prefix)
}
