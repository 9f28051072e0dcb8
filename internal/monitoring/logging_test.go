package monitoring

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    logrus.Level
		wantErr bool
	}{
		{"trace", logrus.TraceLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"INFO", logrus.InfoLevel, false},
		{" warn ", logrus.WarnLevel, false},
		{"error", logrus.ErrorLevel, false},
		{"off", logrus.PanicLevel, false},
		{"critical", logrus.InfoLevel, true},
		{"", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigureAndModule(t *testing.T) {
	original := logger
	defer func() { logger = original }()

	var buf bytes.Buffer
	require.NoError(t, Configure("debug", &buf))

	Module("tunnel").Debug("approach warning started")
	Module("serial").Infof("hello %d", 42)

	out := buf.String()
	assert.Contains(t, out, "module=tunnel")
	assert.Contains(t, out, "approach warning started")
	assert.Contains(t, out, "module=serial")
	assert.Contains(t, out, "hello 42")
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Configure("loud", nil))
}

func TestUseLoggerNilFallsBackToStandard(t *testing.T) {
	original := logger
	defer func() { logger = original }()

	UseLogger(nil)
	assert.Same(t, logrus.StandardLogger(), Logger())
}
