package tunnel

import (
	"context"

	"github.com/banshee-data/tunnelguard/internal/hardware"
)

// checkReset applies the override reset rule. It fires when the side-road
// exit has armed it, the merged vehicle is known to be gone and fresh samples
// of sensors 1 and 2 are both clear. It reports whether it fired.
func (c *Coordinator) checkReset(ctx context.Context) bool {
	if !c.resetArmed || !c.sideExitedAndGone {
		return false
	}
	threshold := c.settings.DetectionThresholdCM
	if !c.sample(ctx, hardware.SensorApproach).Clear(threshold) {
		return false
	}
	if !c.sample(ctx, hardware.SensorEntrance).Clear(threshold) {
		return false
	}

	c.fireReset(ctx)
	return true
}

// fireReset returns every traffic output to normal flow and drops the A, C
// and D activations. Pedestrian bits on bank 2 are left as they are, so a
// crossing in progress keeps its light.
func (c *Coordinator) fireReset(ctx context.Context) {
	opsf("override reset: restoring normal flow (override=%t)", c.override)

	c.show(ctx, hardware.BankApproach, baselineApproach)
	shared := c.frame(hardware.BankShared).CopyBits(baselineShared, sharedTrafficBits...)
	c.show(ctx, hardware.BankShared, shared)
	c.show(ctx, hardware.BankSideRoad, baselineSideRoad)
	c.report("reset stop tone", c.tone.stop(ctx))

	c.override = false
	c.approach.run = nil
	c.merge.run = nil
	c.entrance.run = nil
	c.resetArmed = false
	c.stats.Resets++
}
