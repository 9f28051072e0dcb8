package tunnel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/testutil"
	"github.com/banshee-data/tunnelguard/internal/timeutil"
)

func press(from, until time.Duration) []hardware.ButtonSegment {
	return []hardware.ButtonSegment{{From: from, Pressed: true}, {From: until}}
}

func TestCrossingPhase(t *testing.T) {
	assert.Equal(t, PhaseYellowHold, crossingPhase(0))
	assert.Equal(t, PhaseYellowHold, crossingPhase(1999*time.Millisecond))
	assert.Equal(t, PhaseCrossing, crossingPhase(2*time.Second))
	assert.Equal(t, PhaseCrossing, crossingPhase(6999*time.Millisecond))
	assert.Equal(t, PhaseResume, crossingPhase(7*time.Second))
}

// A press observed at t=1 turns the pedestrian light green and drops its red
// hold straight away, and the red phase for traffic still starts at t=2.
func TestPedestrianSessionPressDuringHold(t *testing.T) {
	testutil.QuietLogs(t)
	clock := timeutil.NewMockClock(epoch)
	sim := hardware.NewSim(clock, hardware.Script{Button: press(time.Second, 1100*time.Millisecond)})
	c := NewCoordinator(sim, clock, DefaultSettings())
	c.banks[hardware.BankShared-1] = baselineShared
	ctx := context.Background()

	session := &c.nested
	require.True(t, session.begin(c, clock.Now()))
	assert.False(t, session.begin(c, clock.Now()), "begin is a no-op while running")

	steps := []struct {
		at       time.Duration
		want     string
		finished bool
	}{
		// red hold, TL4 yellow
		{at: 0, want: "01001010"},
		// press: PL1 green, red hold cancelled
		{at: time.Second, want: "01010010"},
		{at: 1500 * time.Millisecond, want: "01010010"},
		// TL4 red on schedule
		{at: 2 * time.Second, want: "01010001"},
		{at: 6900 * time.Millisecond, want: "01010001"},
		{at: 7 * time.Second, want: "01001100", finished: true},
	}
	for _, step := range steps {
		clock.Set(epoch.Add(step.at))
		finished, _ := session.tick(ctx, c, clock.Now())
		assert.Equal(t, step.finished, finished, "t=%s", step.at)
		assert.Equal(t, step.want, sim.Bank(hardware.BankShared).String(), "t=%s", step.at)
	}
	assert.False(t, session.Running())
	assert.Equal(t, PhaseIdle, session.Phase(clock.Now()))
}

func TestPedestrianSessionWithoutPress(t *testing.T) {
	testutil.QuietLogs(t)
	clock := timeutil.NewMockClock(epoch)
	sim := hardware.NewSim(clock, hardware.Script{})
	c := NewCoordinator(sim, clock, DefaultSettings())
	c.banks[hardware.BankShared-1] = baselineShared
	ctx := context.Background()

	session := &c.nested
	session.begin(c, clock.Now())
	for _, at := range []time.Duration{0, time.Second, 2 * time.Second, 7 * time.Second} {
		clock.Set(epoch.Add(at))
		session.tick(ctx, c, clock.Now())
		f := sim.Bank(hardware.BankShared)
		assert.False(t, f.Get(hardware.GreenPL1), "t=%s", at)
		switch {
		case at < 2*time.Second:
			assert.True(t, f.Get(hardware.RedPL1), "t=%s", at)
			assert.True(t, f.Get(hardware.YellowTL4), "t=%s", at)
		case at < 7*time.Second:
			assert.False(t, f.Get(hardware.RedPL1), "t=%s", at)
			assert.True(t, f.Get(hardware.RedTL4), "t=%s", at)
		default:
			assert.True(t, f.Get(hardware.RedPL1))
			assert.True(t, f.Get(hardware.GreenTL4))
			assert.False(t, f.Get(hardware.RedTL4))
		}
	}
	assert.Equal(t, 4, len(sim.Writes()), "one bank 2 write per tick")
}

func TestCrossingReady(t *testing.T) {
	cooldown := 30 * time.Second
	end := epoch.Add(10 * time.Second)

	tests := []struct {
		name      string
		b         crossing
		pressed   bool
		now       time.Time
		wantReady bool
	}{
		{name: "first press", b: crossing{}, pressed: true, now: epoch, wantReady: true},
		{name: "not pressed", b: crossing{}, pressed: false, now: epoch},
		{name: "held since last tick", b: crossing{lastLevel: true}, pressed: true, now: epoch},
		{name: "inside cooldown", b: crossing{lastEnd: end}, pressed: true, now: end.Add(29 * time.Second)},
		{name: "exactly at cooldown", b: crossing{lastEnd: end}, pressed: true, now: end.Add(cooldown)},
		{name: "after cooldown", b: crossing{lastEnd: end}, pressed: true, now: end.Add(31 * time.Second), wantReady: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantReady, tt.b.ready(tt.pressed, tt.now, cooldown))
		})
	}
}

func crossingStarts(h *harness) []time.Duration {
	var starts []time.Duration
	prev := PhaseIdle
	for _, s := range h.trace {
		if prev == PhaseIdle && s.Crossing != PhaseIdle {
			starts = append(starts, s.At.Sub(epoch))
		}
		prev = s.Crossing
	}
	return starts
}

func TestCrossingCooldown(t *testing.T) {
	var button []hardware.ButtonSegment
	button = append(button, press(0, 500*time.Millisecond)...)
	button = append(button, press(12*time.Second, 12500*time.Millisecond)...)
	button = append(button, press(40*time.Second, 40500*time.Millisecond)...)
	h := newHarness(t, hardware.Script{Button: button})

	h.runUntil(45 * time.Second)

	starts := crossingStarts(h)
	require.Len(t, starts, 2, "the press at 12 s falls inside the cooldown")
	assert.Equal(t, 300*time.Millisecond, starts[0])
	assert.GreaterOrEqual(t, starts[1], 40*time.Second)

	// the first session ends on the first tick at or past 7 s after it began
	assert.Equal(t, epoch.Add(7500*time.Millisecond), h.c.direct.lastEnd)
}

// A button held through the end of a session does not start another one
// until it has been released and pressed again.
func TestCrossingHeldButton(t *testing.T) {
	button := append(press(0, 50*time.Second), press(55*time.Second, 55500*time.Millisecond)...)
	h := newHarness(t, hardware.Script{Button: button})

	h.runUntil(60 * time.Second)

	starts := crossingStarts(h)
	require.Len(t, starts, 2)
	assert.Equal(t, 300*time.Millisecond, starts[0])
	assert.GreaterOrEqual(t, starts[1], 55*time.Second)
}

func TestCrossingDrivesBankTwoOnly(t *testing.T) {
	h := newHarness(t, hardware.Script{Button: press(0, 500*time.Millisecond)})
	h.runUntil(9 * time.Second)

	// startup baseline only, the crossing never touches banks 1 and 3
	assert.Len(t, h.writes(hardware.BankApproach, 0, time.Hour), 2, "startup and return to idle")
	assert.Len(t, h.writes(hardware.BankSideRoad, 0, time.Hour), 2)

	shared := h.writes(hardware.BankShared, 300*time.Millisecond, 7500*time.Millisecond+time.Nanosecond)
	require.NotEmpty(t, shared)
	assert.Equal(t, 300*time.Millisecond, shared[0].At)
	assert.Equal(t, "01010010", shared[0].Frame.String(), "press at entry shows PL1 green")
	assert.Equal(t, baselineShared, shared[len(shared)-1].Frame)
}
