package tunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/tunnelguard/internal/hardware"
)

func reading(cm float64) SensorReading {
	return SensorReading{CM: cm, Valid: true}
}

func approachOnly(r SensorReading) Readings {
	return Readings{r, {}, {}}
}

func TestTrackerEdges(t *testing.T) {
	tr := NewTracker(10)

	steps := []struct {
		in   SensorReading
		want DetectionState
	}{
		{in: SensorReading{}, want: DetectionState{}},
		{in: reading(5), want: DetectionState{Present: true}},
		{in: reading(9.9), want: DetectionState{Present: true}},
		{in: reading(10), want: DetectionState{JustExited: true}},
		{in: reading(25), want: DetectionState{}},
		{in: reading(3), want: DetectionState{Present: true}},
		{in: SensorReading{}, want: DetectionState{JustExited: true}},
		{in: SensorReading{}, want: DetectionState{}},
	}
	for i, step := range steps {
		got := tr.Update(approachOnly(step.in))
		assert.Equal(t, step.want, got[0], "step %d", i)
		assert.Equal(t, step.want, tr.State(hardware.SensorApproach), "step %d", i)
	}
}

// justExited fires exactly once per presence episode, on the update after
// the last present one.
func TestTrackerJustExitedOncePerEpisode(t *testing.T) {
	pattern := []float64{50, 4, 4, 4, 50, 50, 6, 50, 4, 4, 50, 50, 50}
	tr := NewTracker(10)

	var exits []int
	for i, cm := range pattern {
		states := tr.Update(approachOnly(reading(cm)))
		if states[0].JustExited {
			exits = append(exits, i)
			assert.Less(t, pattern[i-1], 10.0, "exit %d must follow a present update", i)
			assert.False(t, states[0].Present)
		}
	}
	assert.Equal(t, []int{4, 7, 10}, exits)
}

func TestTrackerSensorsIndependent(t *testing.T) {
	tr := NewTracker(10)
	tr.Update(Readings{reading(5), reading(5), {}})
	got := tr.Update(Readings{reading(5), {}, reading(2)})

	assert.Equal(t, DetectionState{Present: true}, got[0])
	assert.Equal(t, DetectionState{JustExited: true}, got[1])
	assert.Equal(t, DetectionState{Present: true}, got[2])
	assert.Equal(t, DetectionState{}, tr.State(hardware.SensorID(0)))
	assert.Equal(t, 10.0, tr.Threshold())
}
