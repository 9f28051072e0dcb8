package tunnel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/timeutil"
)

// Stats counts what the coordinator has done since it was created.
type Stats struct {
	Ticks          uint64
	Resets         uint64
	HardwareErrors uint64
}

// Status is a snapshot of the coordinator between ticks.
type Status struct {
	At                time.Time
	Readings          Readings
	Detection         [3]DetectionState
	Override          bool
	SideExitedAndGone bool
	ResetArmed        bool
	Approach          Phase
	Entrance          Phase
	Merge             Phase
	Crossing          Phase
	NestedCrossing    Phase
	Banks             [3]hardware.Frame
	ToneHz            int
}

// Coordinator owns every piece of controller state and runs the tick loop.
// It is not safe for concurrent use; Run and Tick must be called from one
// goroutine.
type Coordinator struct {
	hw       hardware.Hardware
	clock    timeutil.Clock
	settings Settings
	sampler  *Sampler
	detect   *Tracker
	tone     toneTracker
	banks    [3]hardware.Frame

	override          bool
	sideExitedAndGone bool
	resetArmed        bool

	approach approach
	entrance entrance
	merge    merge
	direct   crossing
	nested   PedestrianSession

	snapshot Readings
	started  bool
	idle     bool
	stats    Stats
}

// NewCoordinator returns a coordinator driving hw on clock.
func NewCoordinator(hw hardware.Hardware, clock timeutil.Clock, settings Settings) *Coordinator {
	return &Coordinator{
		hw:       hw,
		clock:    clock,
		settings: settings,
		sampler:  NewSampler(hw, settings.SampleCount, settings.MinValidSamples),
		detect:   NewTracker(settings.DetectionThresholdCM),
		tone:     toneTracker{hw: hw},
		direct:   crossing{session: PedestrianSession{name: "crossing"}},
		nested:   PedestrianSession{name: "merge-crossing"},
	}
}

// Run ticks until ctx is cancelled and returns ctx.Err(). Cleanup is left to
// Shutdown so the caller can bound it with its own deadline.
func (c *Coordinator) Run(ctx context.Context) error {
	diagf("controller running: threshold=%.1fcm tick=%s cooldown=%s",
		c.settings.DetectionThresholdCM, c.settings.TickInterval, c.settings.PedestrianCooldown)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Tick(ctx)
	}
}

// Tick runs one iteration: refresh detection, apply the reset rule, pause,
// take the tick's readings, then dispatch to every active subsystem in the
// order approach, entrance, merge, crossing, nested crossing.
func (c *Coordinator) Tick(ctx context.Context) {
	if !c.started {
		c.started = true
		c.enterIdle(ctx)
	}
	c.stats.Ticks++

	c.refreshDetection(ctx)
	c.checkReset(ctx)

	c.clock.Sleep(c.settings.TickInterval)
	if ctx.Err() != nil {
		return
	}

	readings, err := c.sampler.SampleAll(ctx)
	c.report("sample", err)
	c.snapshot = readings
	tracef("tick %d: %s override=%t latch=%t armed=%t",
		c.stats.Ticks, readings, c.override, c.sideExitedAndGone, c.resetArmed)

	if c.anyRunning() {
		c.idle = false
	} else if !c.idle {
		c.enterIdle(ctx)
	}

	c.dispatch(ctx, c.clock.Now())
}

func (c *Coordinator) refreshDetection(ctx context.Context) {
	readings, err := c.sampler.SampleAll(ctx)
	c.report("detection", err)
	states := c.detect.Update(readings)

	if states[hardware.SensorEntrance-1].Present && !c.override {
		diagf("override raised: vehicle at tunnel entrance (%s)", readings.Get(hardware.SensorEntrance))
		c.override = true
	}
	if states[hardware.SensorSideRoad-1].JustExited {
		if !c.resetArmed {
			diagf("side road vacated: reset armed")
		}
		c.resetArmed = true
	}
}

func (c *Coordinator) dispatch(ctx context.Context, now time.Time) {
	if c.detect.State(hardware.SensorApproach).Present || c.approach.run != nil {
		if c.approach.run == nil {
			c.approach.run = c.activate("approach", now)
		}
		c.approach.tick(ctx, c, now)
	}

	if c.detect.State(hardware.SensorEntrance).Present {
		if c.entrance.run == nil {
			c.entrance.run = c.activate("entrance", now)
		}
		c.entrance.tick(ctx, c, now)
	}

	if c.detect.State(hardware.SensorSideRoad).Present || c.merge.run != nil {
		if c.merge.run == nil {
			c.merge.run = c.activate("merge", now)
		}
		c.merge.tick(ctx, c, now)
	}

	c.direct.tick(ctx, c, now)

	if c.nested.Running() {
		c.nested.tick(ctx, c, now)
	}
}

func (c *Coordinator) activate(subsystem string, now time.Time) *run {
	r := newRun(now)
	runLog(subsystem, r).Infof("activated (override=%t)", c.override)
	return r
}

func (c *Coordinator) anyRunning() bool {
	return c.approach.run != nil ||
		c.entrance.run != nil ||
		c.merge.run != nil ||
		c.direct.session.Running() ||
		c.nested.Running()
}

// enterIdle silences the buzzer and puts every bank at its baseline.
func (c *Coordinator) enterIdle(ctx context.Context) {
	diagf("idle: all banks to baseline")
	c.report("idle stop tone", c.tone.stop(ctx))
	for _, bank := range hardware.Banks {
		c.show(ctx, bank, Baseline(bank))
	}
	c.idle = true
}

// frame returns the in-memory frame for bank, for subsystems that change a
// few bits before calling commit.
func (c *Coordinator) frame(bank hardware.BankID) *hardware.Frame {
	return &c.banks[bank-1]
}

// show replaces the whole frame of bank and commits it.
func (c *Coordinator) show(ctx context.Context, bank hardware.BankID, f hardware.Frame) {
	c.banks[bank-1] = f
	c.commit(ctx, bank)
}

// commit latches the in-memory frame of bank.
func (c *Coordinator) commit(ctx context.Context, bank hardware.BankID) {
	err := c.hw.WriteBank(ctx, bank, c.banks[bank-1])
	if err != nil {
		err = fmt.Errorf("write bank %d %s: %w", int(bank), c.banks[bank-1], err)
	}
	c.report("write", err)
}

func (c *Coordinator) sample(ctx context.Context, sensor hardware.SensorID) SensorReading {
	r, err := c.sampler.Sample(ctx, sensor)
	c.report("sample", err)
	return r
}

func (c *Coordinator) readButton(ctx context.Context) bool {
	pressed, err := c.hw.ReadButton(ctx)
	c.report("button", err)
	return pressed
}

// report logs a hardware error on the ops stream. The tick carries on.
func (c *Coordinator) report(op string, err error) {
	if err == nil {
		return
	}
	c.stats.HardwareErrors++
	opsf("%s: %v", op, err)
}

// Stats returns the counters.
func (c *Coordinator) Stats() Stats {
	return c.stats
}

// Status returns a snapshot of the coordinator at the clock's current time.
func (c *Coordinator) Status() Status {
	now := c.clock.Now()
	s := Status{
		At:                now,
		Readings:          c.snapshot,
		Detection:         c.detect.States(),
		Override:          c.override,
		SideExitedAndGone: c.sideExitedAndGone,
		ResetArmed:        c.resetArmed,
		Approach:          PhaseIdle,
		Entrance:          PhaseIdle,
		Merge:             PhaseIdle,
		Crossing:          c.direct.session.Phase(now),
		NestedCrossing:    c.nested.Phase(now),
		Banks:             c.banks,
		ToneHz:            c.tone.hz(),
	}
	if r := c.approach.run; r != nil {
		s.Approach = approachPhase(r.elapsed(now))
	}
	if c.entrance.run != nil {
		s.Entrance = PhaseActive
	}
	if r := c.merge.run; r != nil {
		s.Merge = mergePhase(r.elapsed(now))
	}
	return s
}

// Shutdown silences the buzzer, zeroes every bank and releases the outputs.
// Every step is attempted even if an earlier one fails; the errors are
// joined.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var errs []error
	if err := c.hw.StopTone(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop tone: %w", err))
	}
	for _, bank := range hardware.Banks {
		if err := c.hw.WriteBank(ctx, bank, hardware.Frame{}); err != nil {
			errs = append(errs, fmt.Errorf("zero bank %d: %w", int(bank), err))
		}
	}
	if err := c.hw.ShutdownAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	c.tone.forget()
	c.banks = [3]hardware.Frame{}

	err := errors.Join(errs...)
	if err != nil {
		opsf("shutdown incomplete: %v", err)
	}
	diagf("shutdown after %d ticks, %d resets, %d hardware errors",
		c.stats.Ticks, c.stats.Resets, c.stats.HardwareErrors)
	return err
}
