package tunnel

import (
	"context"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
)

// Pedestrian crossing phase boundaries.
const (
	crossingRedAt = 2 * time.Second
	crossingEndAt = 7 * time.Second
)

// PedestrianSession is the crossing sequence on bank 2. The coordinator owns
// two: one started by the button and one nested inside the side-road merge.
type PedestrianSession struct {
	name string
	run  *run
}

func crossingPhase(t time.Duration) Phase {
	switch {
	case t < crossingRedAt:
		return PhaseYellowHold
	case t < crossingEndAt:
		return PhaseCrossing
	default:
		return PhaseResume
	}
}

// Running reports whether a session is in progress.
func (p *PedestrianSession) Running() bool {
	return p.run != nil
}

// Phase returns the current phase at now.
func (p *PedestrianSession) Phase(now time.Time) Phase {
	if p.run == nil {
		return PhaseIdle
	}
	return crossingPhase(p.run.elapsed(now))
}

// begin starts a session timed from start and holds the pedestrian light at
// red. A session already in progress is left alone.
func (p *PedestrianSession) begin(c *Coordinator, start time.Time) bool {
	if p.run != nil {
		return false
	}
	p.run = newRun(start)
	c.frame(hardware.BankShared).Set(hardware.RedPL1, true)
	runLog(p.name, p.run).Info("crossing started")
	return true
}

// stop abandons the session without running its exit.
func (p *PedestrianSession) stop() {
	if p.run != nil {
		runLog(p.name, p.run).Info("crossing abandoned")
	}
	p.run = nil
}

// tick advances the session and commits bank 2. It reports whether the
// session finished on this tick and the button level it observed.
func (p *PedestrianSession) tick(ctx context.Context, c *Coordinator, now time.Time) (finished, pressed bool) {
	if p.run == nil {
		return false, false
	}
	r := p.run
	f := c.frame(hardware.BankShared)

	pressed = c.readButton(ctx)
	if pressed {
		f.Set(hardware.GreenPL1, true).Set(hardware.RedPL1, false)
	}

	t := r.elapsed(now)
	phase := crossingPhase(t)
	if r.enter(phase) {
		runLog(p.name, r).Infof("phase %s at %s", phase, t.Round(time.Millisecond))
	}

	switch phase {
	case PhaseYellowHold:
		f.Set(hardware.YellowTL4, true).Set(hardware.GreenTL4, false)
	case PhaseCrossing:
		// Walk phase: the pedestrian red goes dark while TL4 holds traffic.
		f.Set(hardware.YellowTL4, false).Set(hardware.RedTL4, true).Set(hardware.RedPL1, false)
	case PhaseResume:
		f.Set(hardware.GreenTL4, true).Set(hardware.RedTL4, false).
			Set(hardware.GreenPL1, false).Set(hardware.RedPL1, true)
		finished = true
	}
	c.commit(ctx, hardware.BankShared)

	if finished {
		p.run = nil
	}
	return finished, pressed
}

// crossing is subsystem B: the button-triggered pedestrian session with its
// cooldown bookkeeping.
type crossing struct {
	session   PedestrianSession
	lastEnd   time.Time
	lastLevel bool
}

// ready reports whether a press starts a new session: the button is down, it
// was up when last observed and the cooldown since the previous session has
// elapsed.
func (b *crossing) ready(pressed bool, now time.Time, cooldown time.Duration) bool {
	if !pressed || b.lastLevel {
		return false
	}
	return b.lastEnd.IsZero() || now.Sub(b.lastEnd) > cooldown
}

// restartCooldown drops any session in progress and starts a fresh cooldown
// window at now.
func (b *crossing) restartCooldown(now time.Time) {
	b.session.stop()
	b.lastEnd = now
}

func (b *crossing) tick(ctx context.Context, c *Coordinator, now time.Time) {
	if !b.session.Running() {
		pressed := c.readButton(ctx)
		if b.ready(pressed, now, c.settings.PedestrianCooldown) {
			b.session.begin(c, now)
		}
		b.lastLevel = pressed
	}
	if !b.session.Running() {
		return
	}
	if finished, pressed := b.session.tick(ctx, c, now); finished {
		b.lastEnd = now
		b.lastLevel = pressed
	}
}
