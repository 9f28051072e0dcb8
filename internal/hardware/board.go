package hardware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/tunnelguard/internal/serialmux"
)

// Board drives the I/O microcontroller over its serial line protocol. Each
// contract call sends one command and waits up to the reply timeout for the
// matching reply. The mux's Monitor loop must be running.
type Board struct {
	mux          serialmux.SerialMuxInterface
	replyTimeout time.Duration

	mu       sync.Mutex
	shutdown bool
}

var _ Hardware = (*Board)(nil)

// NewBoard wraps an open mux. A non-positive replyTimeout defaults to 500ms.
func NewBoard(mux serialmux.SerialMuxInterface, replyTimeout time.Duration) *Board {
	if replyTimeout <= 0 {
		replyTimeout = 500 * time.Millisecond
	}
	return &Board{mux: mux, replyTimeout: replyTimeout}
}

// Handshake asks the controller for its firmware version. A board that does
// not answer is not usable.
func (b *Board) Handshake(ctx context.Context) (string, error) {
	reply, err := b.query(ctx, "V?", "V:")
	if err != nil {
		return "", fmt.Errorf("controller handshake: %w", err)
	}
	firmware := strings.TrimSpace(strings.TrimPrefix(reply, "V:"))
	diagf("controller firmware %q", firmware)
	return firmware, nil
}

func (b *Board) query(ctx context.Context, command, prefix string) (string, error) {
	b.mu.Lock()
	closed := b.shutdown
	b.mu.Unlock()
	if closed {
		return "", ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, b.replyTimeout)
	defer cancel()

	reply, err := b.mux.Query(ctx, command, func(line string) bool {
		return strings.HasPrefix(line, prefix)
	})
	if err != nil {
		return "", err
	}
	tracef("%s -> %s", command, reply)
	return reply, nil
}

func (b *Board) expectOK(ctx context.Context, command string) error {
	_, err := b.query(ctx, command, "OK")
	return err
}

// ProbeDistance sends P<n> and parses D<n>:<cm>, or D<n>:- for no echo.
func (b *Board) ProbeDistance(ctx context.Context, sensor SensorID) (float64, bool, error) {
	if err := checkSensor(sensor); err != nil {
		return 0, false, err
	}
	prefix := fmt.Sprintf("D%d:", int(sensor))
	reply, err := b.query(ctx, fmt.Sprintf("P%d", int(sensor)), prefix)
	if err != nil {
		return 0, false, fmt.Errorf("probe %s: %w", sensor, err)
	}
	value := strings.TrimSpace(strings.TrimPrefix(reply, prefix))
	if value == "-" {
		return 0, false, nil
	}
	cm, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, fmt.Errorf("probe %s: malformed reply %q: %w", sensor, reply, err)
	}
	return cm, true, nil
}

// ReadButton sends B? and parses K:0 or K:1.
func (b *Board) ReadButton(ctx context.Context) (bool, error) {
	reply, err := b.query(ctx, "B?", "K:")
	if err != nil {
		return false, fmt.Errorf("read button: %w", err)
	}
	switch strings.TrimSpace(strings.TrimPrefix(reply, "K:")) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("read button: malformed reply %q", reply)
	}
}

// WriteBank sends L<n>:<bits>.
func (b *Board) WriteBank(ctx context.Context, bank BankID, frame Frame) error {
	if err := checkBank(bank); err != nil {
		return err
	}
	if err := b.expectOK(ctx, fmt.Sprintf("L%d:%s", int(bank), frame)); err != nil {
		return fmt.Errorf("write bank %d: %w", int(bank), err)
	}
	return nil
}

// SetTone sends T<hz>:<ms>, with ms 0 meaning sustain.
func (b *Board) SetTone(ctx context.Context, hz int, d time.Duration) error {
	if err := checkTone(hz, d); err != nil {
		return err
	}
	if err := b.expectOK(ctx, fmt.Sprintf("T%d:%d", hz, d.Milliseconds())); err != nil {
		return fmt.Errorf("set tone %dHz: %w", hz, err)
	}
	return nil
}

// StopTone sends T0.
func (b *Board) StopTone(ctx context.Context) error {
	if err := b.expectOK(ctx, "T0"); err != nil {
		return fmt.Errorf("stop tone: %w", err)
	}
	return nil
}

// ShutdownAll sends Z, which silences the buzzer and zeroes every bank on the
// controller side. Once it has succeeded further calls are no-ops and every
// other call returns ErrClosed.
func (b *Board) ShutdownAll(ctx context.Context) error {
	b.mu.Lock()
	done := b.shutdown
	b.mu.Unlock()
	if done {
		return nil
	}
	if err := b.expectOK(ctx, "Z"); err != nil {
		opsf("controller shutdown failed: %v", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	b.mu.Lock()
	b.shutdown = true
	b.mu.Unlock()
	diagf("controller outputs cleared")
	return nil
}

// Close releases the serial port.
func (b *Board) Close() error {
	return b.mux.Close()
}
