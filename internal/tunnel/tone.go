package tunnel

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/tunnelguard/internal/hardware"
)

type toneCommand struct {
	hz       int
	duration time.Duration
}

// toneTracker forwards buzzer commands and drops repeats of the command
// already in force. The state is unknown until the first command, so the
// first stop is always sent.
type toneTracker struct {
	hw      hardware.Hardware
	known   bool
	current toneCommand // zero hz is silent
}

func (t *toneTracker) set(ctx context.Context, hz int, d time.Duration) error {
	cmd := toneCommand{hz: hz, duration: d}
	if t.known && t.current == cmd {
		return nil
	}
	if err := t.hw.SetTone(ctx, hz, d); err != nil {
		t.known = false
		return fmt.Errorf("set tone %dHz: %w", hz, err)
	}
	t.known, t.current = true, cmd
	return nil
}

func (t *toneTracker) stop(ctx context.Context) error {
	if t.known && t.current.hz == 0 {
		return nil
	}
	if err := t.hw.StopTone(ctx); err != nil {
		t.known = false
		return fmt.Errorf("stop tone: %w", err)
	}
	t.known, t.current = true, toneCommand{}
	return nil
}

// hz returns the frequency last commanded, zero when silent or unknown.
func (t *toneTracker) hz() int {
	if !t.known {
		return 0
	}
	return t.current.hz
}

// forget marks the buzzer state unknown, after something other than the
// tracker has driven it.
func (t *toneTracker) forget() {
	t.known = false
	t.current = toneCommand{}
}
