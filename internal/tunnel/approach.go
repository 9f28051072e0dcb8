package tunnel

import (
	"context"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/units"
)

// Approach warning phase boundaries, measured from activation.
const (
	approachAlertAt    = 1 * time.Second
	approachSustainAt  = 2 * time.Second
	approachEscalateAt = 32 * time.Second
	alertBurst         = 1 * time.Second
)

// approach is subsystem A: the overheight warning on the approach road.
type approach struct {
	run *run
}

func approachPhase(t time.Duration) Phase {
	switch {
	case t < approachAlertAt:
		return PhaseQuiet
	case t < approachSustainAt:
		return PhaseAlert
	case t < approachEscalateAt:
		return PhaseSustained
	default:
		return PhaseEscalation
	}
}

func (a *approach) tick(ctx context.Context, c *Coordinator, now time.Time) {
	// Under override nothing moves, not even the flash counter.
	if c.override || a.run == nil {
		return
	}
	r := a.run

	if c.sideExitedAndGone && !c.detect.State(hardware.SensorApproach).Present {
		runLog("approach", r).Infof("cleared after %s", r.elapsed(now).Round(time.Millisecond))
		c.report("approach stop tone", c.tone.stop(ctx))
		c.show(ctx, hardware.BankApproach, baselineApproach)
		a.run = nil
		return
	}

	if !r.firstSeen {
		r.firstSeen = true
		c.logVehicleHeight(r)
	}

	t := r.elapsed(now)
	phase := approachPhase(t)
	if r.enter(phase) {
		runLog("approach", r).Infof("phase %s at %s", phase, t.Round(time.Millisecond))
	}

	var frame hardware.Frame
	switch phase {
	case PhaseQuiet:
		c.report("approach stop tone", c.tone.stop(ctx))
		frame = approachQuiet
	case PhaseAlert:
		frame = approachAlert
		c.report("approach alert tone", c.tone.set(ctx, c.settings.AlertToneHz, alertBurst))
	case PhaseSustained:
		c.report("approach sustained tone", c.tone.set(ctx, c.settings.AlertToneHz, 0))
		frame = flashFrame(r.flash(), approachFlashOn, approachFlashOff)
	case PhaseEscalation:
		if c.sample(ctx, hardware.SensorApproach).Present(c.settings.DetectionThresholdCM) {
			c.report("approach escalation tone", c.tone.set(ctx, c.settings.EscalationToneHz, 0))
		}
		frame = flashFrame(r.flash(), approachFlashOn, approachFlashOff)
	}
	c.show(ctx, hardware.BankApproach, frame)
}

// logVehicleHeight estimates the real height of the vehicle under sensor 1
// from this tick's reading.
func (c *Coordinator) logVehicleHeight(r *run) {
	reading := c.snapshot.Get(hardware.SensorApproach)
	if !reading.Valid {
		runLog("approach", r).Info("overheight vehicle detected, no reading for a height estimate")
		return
	}
	scale := units.Scale{Ratio: c.settings.ScaleRatio}
	height := scale.VehicleHeight(c.settings.TunnelClearanceCM, reading.CM)
	runLog("approach", r).WithField("distance_cm", reading.CM).
		Infof("overheight vehicle detected, estimated height %.2f %s", height, units.M)
}
