package tunnel

import (
	"context"
	"testing"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/testutil"
	"github.com/banshee-data/tunnelguard/internal/timeutil"
)

var epoch = time.Date(2025, 4, 27, 9, 0, 0, 0, time.UTC)

const tick = 300 * time.Millisecond

type harness struct {
	t     *testing.T
	clock *timeutil.MockClock
	sim   *hardware.Sim
	c     *Coordinator
	trace []Status
}

// newHarness wires a coordinator to a simulated board on a stepping clock,
// so each Tick moves time forward by the tick interval.
func newHarness(t *testing.T, script hardware.Script) *harness {
	t.Helper()
	testutil.QuietLogs(t)
	clock := timeutil.NewSteppingClock(epoch)
	sim := hardware.NewSim(clock, script)
	return &harness{
		t:     t,
		clock: clock,
		sim:   sim,
		c:     NewCoordinator(sim, clock, DefaultSettings()),
	}
}

// runUntil ticks until the clock reaches offset, recording a Status after
// every tick.
func (h *harness) runUntil(offset time.Duration) {
	h.t.Helper()
	ctx := context.Background()
	for h.clock.Since(epoch) < offset {
		h.c.Tick(ctx)
		h.trace = append(h.trace, h.c.Status())
	}
}

// phases returns the distinct consecutive phases picked from the trace.
func (h *harness) phases(pick func(Status) Phase) []Phase {
	var out []Phase
	for _, s := range h.trace {
		p := pick(s)
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}

func (h *harness) writes(bank hardware.BankID, from, to time.Duration) []hardware.BankWrite {
	var out []hardware.BankWrite
	for _, w := range h.sim.Writes() {
		if w.Bank == bank && w.At >= from && w.At < to {
			out = append(out, w)
		}
	}
	return out
}

func (h *harness) statusAt(offset time.Duration) Status {
	h.t.Helper()
	for _, s := range h.trace {
		if s.At.Sub(epoch) >= offset {
			return s
		}
	}
	h.t.Fatalf("no status recorded at or after %s", offset)
	return Status{}
}

func present(from time.Duration) hardware.Segment { return hardware.Reading(from, 5) }
