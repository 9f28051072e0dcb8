package tunnel

import "github.com/banshee-data/tunnelguard/internal/hardware"

// DetectionState is the per-sensor presence level and its falling edge.
type DetectionState struct {
	Present    bool
	JustExited bool
}

// Tracker converts readings into presence levels and one-tick exit edges.
type Tracker struct {
	threshold float64
	states    [3]DetectionState
}

// NewTracker returns a Tracker with every sensor absent.
func NewTracker(threshold float64) *Tracker {
	return &Tracker{threshold: threshold}
}

// Update folds one set of readings into the tracked state. A sensor that was
// present and is no longer present reports JustExited for this update only.
func (t *Tracker) Update(readings Readings) [3]DetectionState {
	for i, r := range readings {
		was := t.states[i].Present
		now := r.Present(t.threshold)
		if was && !now {
			t.states[i] = DetectionState{Present: false, JustExited: true}
			continue
		}
		t.states[i] = DetectionState{Present: now}
	}
	return t.states
}

// State returns the tracked state of sensor.
func (t *Tracker) State(sensor hardware.SensorID) DetectionState {
	if !sensor.Valid() {
		return DetectionState{}
	}
	return t.states[sensor-1]
}

// States returns the tracked state of every sensor, indexed by sensor id.
func (t *Tracker) States() [3]DetectionState {
	return t.states
}

// Threshold returns the presence threshold in centimetres.
func (t *Tracker) Threshold() float64 {
	return t.threshold
}
