package tunnel

import (
	"context"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
)

// entrance is subsystem D: the warning at the tunnel mouth. It has no exit of
// its own; only the reset rule returns it to idle.
type entrance struct {
	run *run
}

func (d *entrance) tick(ctx context.Context, c *Coordinator, now time.Time) {
	if d.run == nil {
		return
	}
	r := d.run

	// Any direct crossing is cancelled and its cooldown starts over.
	c.direct.restartCooldown(now)

	f := c.frame(hardware.BankShared)
	f.Set(hardware.RedTL3, true).Set(hardware.GreenTL3, false).
		Set(hardware.RedPL1, true).Set(hardware.GreenPL1, false)

	if !c.sample(ctx, hardware.SensorEntrance).Clear(c.settings.DetectionThresholdCM) {
		f.Set(hardware.RedTL4, true).Set(hardware.YellowTL4, false).Set(hardware.GreenTL4, false)
		f.Set(hardware.RedWL2, r.flash())
	}
	c.commit(ctx, hardware.BankShared)
}
