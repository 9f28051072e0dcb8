package monitoring

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger = logrus.StandardLogger()

// levels maps the accepted -log.level values onto logrus levels. "off" keeps
// only panics.
var levels = map[string]logrus.Level{
	"trace": logrus.TraceLevel,
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
	"off":   logrus.PanicLevel,
}

// ParseLevel converts a -log.level value into a logrus level.
func ParseLevel(name string) (logrus.Level, error) {
	level, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q (expected one of %s)", name, LevelNames())
	}
	return level, nil
}

// LevelNames returns the accepted level names for usage strings.
func LevelNames() string {
	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// Configure installs the text formatter, the output writer and the level on
// the shared logger.
func Configure(level string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	if w != nil {
		l.SetOutput(w)
	}
	l.SetLevel(lvl)
	UseLogger(l)
	return nil
}

// UseLogger makes l the shared logger for every module.
func UseLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger = l
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return logger
}

// Module returns an entry tagged with the module name. Call it at log time
// rather than caching the entry so UseLogger takes effect everywhere.
func Module(name string) *logrus.Entry {
	return logger.WithField("module", name)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
