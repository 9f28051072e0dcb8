package tunnel

import (
	"context"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
)

// Side-road merge phase boundaries.
const (
	mergeGoAt    = 2 * time.Second
	mergeCheckAt = 7 * time.Second
)

// merge is subsystem C: lets a vehicle out of the side road.
type merge struct {
	run *run
}

func mergePhase(t time.Duration) Phase {
	switch {
	case t < mergeGoAt:
		return PhaseMergeHold
	case t < mergeCheckAt:
		return PhaseMergeGo
	default:
		return PhaseMergeFlash
	}
}

func (m *merge) tick(ctx context.Context, c *Coordinator, now time.Time) {
	if m.run == nil {
		return
	}
	r := m.run
	threshold := c.settings.DetectionThresholdCM

	t := r.elapsed(now)
	phase := mergePhase(t)
	if r.enter(phase) {
		runLog("merge", r).Infof("phase %s at %s", phase, t.Round(time.Millisecond))
	}

	var frame hardware.Frame
	switch phase {
	case PhaseMergeHold:
		c.sideExitedAndGone = false
		c.nested.begin(c, r.start)
		frame = mergeHold
	case PhaseMergeGo:
		frame = mergeGo
		if c.sample(ctx, hardware.SensorSideRoad).Clear(threshold) {
			c.sideExitedAndGone = true
		}
	case PhaseMergeFlash:
		if c.sample(ctx, hardware.SensorSideRoad).Present(threshold) {
			frame = flashFrame(r.flash(), mergeGo, mergeFlashOff)
			break
		}
		frame = baselineSideRoad
		c.sideExitedAndGone = true
		runLog("merge", r).Infof("side road clear after %s", t.Round(time.Millisecond))
		m.run = nil
	}
	c.show(ctx, hardware.BankSideRoad, frame)
}
