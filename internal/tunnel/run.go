package tunnel

import (
	"time"

	"github.com/google/uuid"
)

// run is the record of one activation of a subsystem. A nil *run means the
// subsystem is idle, so a stale counter cannot outlive its activation.
type run struct {
	id         uuid.UUID
	start      time.Time
	iterations int
	firstSeen  bool
	phase      Phase
}

func newRun(start time.Time) *run {
	return &run{id: uuid.New(), start: start}
}

func (r *run) elapsed(now time.Time) time.Duration {
	return now.Sub(r.start)
}

// flash advances the iteration counter and reports whether this is an "on"
// tick. Odd counts are on.
func (r *run) flash() bool {
	r.iterations++
	return r.iterations%2 == 1
}

// enter records the phase and reports whether it changed.
func (r *run) enter(p Phase) bool {
	if r.phase == p {
		return false
	}
	r.phase = p
	return true
}

// Phase names the position of a subsystem in its sequence.
type Phase string

const (
	PhaseIdle Phase = "idle"

	// Approach warning.
	PhaseQuiet      Phase = "quiet"
	PhaseAlert      Phase = "alert"
	PhaseSustained  Phase = "sustained"
	PhaseEscalation Phase = "escalation"

	// Pedestrian crossing.
	PhaseYellowHold Phase = "yellow-hold"
	PhaseCrossing   Phase = "crossing"
	PhaseResume     Phase = "resume"

	// Side-road merge.
	PhaseMergeHold  Phase = "hold"
	PhaseMergeGo    Phase = "go"
	PhaseMergeFlash Phase = "flash"

	// Entrance warning.
	PhaseActive Phase = "active"
)
