package hardware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tunnelguard/internal/testutil"
)

const sideRoadYAML = `
name: side-road merge
duration: 12s
sensors:
  3:
    - from: 0s
      cm: 5
    - from: 3s
      cm: 40
  1:
    - from: 0s
button:
  - from: 1s
    pressed: true
  - from: 1200ms
    pressed: false
`

func TestParseScript(t *testing.T) {
	s, err := ParseScript([]byte(sideRoadYAML))
	require.NoError(t, err)

	assert.Equal(t, "side-road merge", s.Name)
	assert.Equal(t, 12*time.Second, s.Duration)

	cm, ok := s.DistanceAt(SensorSideRoad, 2*time.Second)
	assert.True(t, ok)
	assert.Equal(t, 5.0, cm)

	cm, ok = s.DistanceAt(SensorSideRoad, 3*time.Second)
	assert.True(t, ok)
	assert.Equal(t, 40.0, cm)

	_, ok = s.DistanceAt(SensorApproach, time.Second)
	assert.False(t, ok, "segment without cm is no echo")

	assert.False(t, s.PressedAt(999*time.Millisecond))
	assert.True(t, s.PressedAt(time.Second))
	assert.False(t, s.PressedAt(1200*time.Millisecond))
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad yaml", yaml: "sensors: [1"},
		{name: "unknown sensor", yaml: "sensors:\n  4:\n    - from: 0s\n"},
		{name: "unordered", yaml: "sensors:\n  1:\n    - from: 2s\n    - from: 1s\n"},
		{name: "negative offset", yaml: "sensors:\n  1:\n    - from: -1s\n"},
		{name: "unordered button", yaml: "button:\n  - from: 2s\n  - from: 1s\n"},
		{name: "bad duration", yaml: "duration: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadScript(t *testing.T) {
	path := testutil.WriteFile(t, "approach.yaml", "sensors:\n  1:\n    - from: 0s\n      cm: 5\n")

	s, err := LoadScript(path)
	testutil.AssertNoError(t, err)
	assert.Equal(t, "approach.yaml", s.Name, "name defaults to the file name")

	_, err = LoadScript(path + ".missing")
	testutil.AssertError(t, err)
}
