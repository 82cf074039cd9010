package fixtures

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type writer struct {
	tb testing.TB
}

var _ io.Writer = (*writer)(nil)

func (w writer) Write(p []byte) (int, error) {
	w.tb.Log(string(p))
	return len(p), nil
}

// NewTestLogger returns a logger which writes through tb.Log at debug level,
// so output is only shown for failing tests.
func NewTestLogger(tb testing.TB, opts ...func(*logrus.Logger)) logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)

	for _, opt := range opts {
		opt(l)
	}
	l.SetOutput(writer{tb: tb})

	return l
}
