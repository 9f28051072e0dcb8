package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/timeutil"
	"github.com/banshee-data/tunnelguard/internal/tunnel"
)

// defaultDuration applies to scenarios that do not set one.
const defaultDuration = 60 * time.Second

// replayEpoch is the simulated wall time of offset zero.
var replayEpoch = time.Date(2025, 4, 27, 9, 0, 0, 0, time.UTC)

// Replay is the recorded outcome of one scenario run.
type Replay struct {
	Name     string
	Duration time.Duration
	Statuses []tunnel.Status
	Writes   []hardware.BankWrite
	Tones    []hardware.ToneEvent
	Stats    tunnel.Stats
}

// Offset returns the scenario offset of a status.
func (r *Replay) Offset(s tunnel.Status) time.Duration {
	return s.At.Sub(replayEpoch)
}

// runScenario plays script against a simulated board on a stepping clock and
// records a status after every tick, then shuts the controller down.
func runScenario(ctx context.Context, script hardware.Script, settings tunnel.Settings) (*Replay, error) {
	duration := script.Duration
	if duration <= 0 {
		duration = defaultDuration
	}

	clock := timeutil.NewSteppingClock(replayEpoch)
	sim := hardware.NewSim(clock, script)
	c := tunnel.NewCoordinator(sim, clock, settings)

	rep := &Replay{Name: script.Name, Duration: duration}
	for clock.Since(replayEpoch) < duration {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.Tick(ctx)
		rep.Statuses = append(rep.Statuses, c.Status())
	}
	if err := c.Shutdown(ctx); err != nil {
		return nil, fmt.Errorf("shutdown: %w", err)
	}

	rep.Writes = sim.Writes()
	rep.Tones = sim.Tones()
	rep.Stats = c.Stats()
	return rep, nil
}

type phaseColumn struct {
	name string
	pick func(tunnel.Status) tunnel.Phase
}

var phaseColumns = []phaseColumn{
	{"approach", func(s tunnel.Status) tunnel.Phase { return s.Approach }},
	{"entrance", func(s tunnel.Status) tunnel.Phase { return s.Entrance }},
	{"merge", func(s tunnel.Status) tunnel.Phase { return s.Merge }},
	{"crossing", func(s tunnel.Status) tunnel.Phase { return s.Crossing }},
	{"merge-crossing", func(s tunnel.Status) tunnel.Phase { return s.NestedCrossing }},
}

// Transitions lists every change of phase, flag and tone in tick order.
func (r *Replay) Transitions() []string {
	var out []string
	prev := tunnel.Status{
		Approach:       tunnel.PhaseIdle,
		Entrance:       tunnel.PhaseIdle,
		Merge:          tunnel.PhaseIdle,
		Crossing:       tunnel.PhaseIdle,
		NestedCrossing: tunnel.PhaseIdle,
	}
	for _, s := range r.Statuses {
		at := r.Offset(s).Seconds()
		for _, col := range phaseColumns {
			if was, now := col.pick(prev), col.pick(s); was != now {
				out = append(out, fmt.Sprintf("%7.2fs  %-15s %s -> %s", at, col.name, was, now))
			}
		}
		if s.Override != prev.Override {
			out = append(out, fmt.Sprintf("%7.2fs  %-15s %t", at, "override", s.Override))
		}
		if s.ResetArmed != prev.ResetArmed {
			out = append(out, fmt.Sprintf("%7.2fs  %-15s %t", at, "reset-armed", s.ResetArmed))
		}
		if s.SideExitedAndGone != prev.SideExitedAndGone {
			out = append(out, fmt.Sprintf("%7.2fs  %-15s %t", at, "side-road-clear", s.SideExitedAndGone))
		}
		if s.ToneHz != prev.ToneHz {
			out = append(out, fmt.Sprintf("%7.2fs  %-15s %d Hz", at, "tone", s.ToneHz))
		}
		prev = s
	}
	return out
}

// WriteTrace prints the transitions, optionally every bank write, and a
// summary line.
func (r *Replay) WriteTrace(w io.Writer, withWrites bool) error {
	if _, err := fmt.Fprintf(w, "scenario %q, %s\n", r.Name, r.Duration); err != nil {
		return err
	}
	for _, line := range r.Transitions() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if withWrites {
		for _, wr := range r.Writes {
			if _, err := fmt.Fprintf(w, "%7.2fs  L%d %s\n", wr.At.Seconds(), int(wr.Bank), wr.Frame); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "ticks=%d resets=%d hardware_errors=%d writes=%d tones=%d\n",
		r.Stats.Ticks, r.Stats.Resets, r.Stats.HardwareErrors, len(r.Writes), len(r.Tones))
	return err
}
