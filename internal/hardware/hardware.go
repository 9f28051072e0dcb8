// Package hardware is the boundary between the tunnel controller and the
// physical model: three ultrasonic range sensors, the pedestrian button, three
// shift-register output banks and the buzzer.
//
// Two implementations are provided. Board talks to the I/O microcontroller
// over a serial line; Sim answers from a scripted scenario and records every
// output for inspection.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownBank is returned for a bank id outside 1..3. It indicates a
	// programming error and is raised before any I/O happens.
	ErrUnknownBank = errors.New("unknown bank")
	// ErrUnknownSensor is returned for a sensor id outside 1..3.
	ErrUnknownSensor = errors.New("unknown sensor")
	// ErrClosed is returned by calls made after ShutdownAll.
	ErrClosed = errors.New("hardware shut down")
)

// SensorID identifies one of the three range sensors.
type SensorID int

const (
	SensorApproach SensorID = 1 // approach road, ahead of the tunnel
	SensorEntrance SensorID = 2 // tunnel mouth
	SensorSideRoad SensorID = 3 // side road merging before the tunnel
)

// Sensors lists every sensor in probe order.
var Sensors = []SensorID{SensorApproach, SensorEntrance, SensorSideRoad}

func (s SensorID) Valid() bool {
	return s >= SensorApproach && s <= SensorSideRoad
}

func (s SensorID) String() string {
	switch s {
	case SensorApproach:
		return "approach"
	case SensorEntrance:
		return "entrance"
	case SensorSideRoad:
		return "side-road"
	default:
		return fmt.Sprintf("sensor(%d)", int(s))
	}
}

// BankID identifies one of the three output banks.
type BankID int

const (
	BankApproach BankID = 1 // TL1, TL2, WL1
	BankShared   BankID = 2 // TL3, WL2, PL1, TL4
	BankSideRoad BankID = 3 // TL5
)

// Banks lists every output bank.
var Banks = []BankID{BankApproach, BankShared, BankSideRoad}

func (b BankID) Valid() bool {
	return b >= BankApproach && b <= BankSideRoad
}

// Hardware is the contract the controller core drives. Calls are synchronous
// and bounded; implementations are not required to be safe for concurrent use
// beyond what their own docs state.
type Hardware interface {
	// ProbeDistance takes a single range probe. ok is false when the sensor
	// returned no echo.
	ProbeDistance(ctx context.Context, sensor SensorID) (cm float64, ok bool, err error)
	// ReadButton reports whether the pedestrian button is held.
	ReadButton(ctx context.Context) (bool, error)
	// WriteBank latches all eight bits of one bank at once.
	WriteBank(ctx context.Context, bank BankID, frame Frame) error
	// SetTone starts the buzzer. A zero duration sustains until StopTone.
	SetTone(ctx context.Context, hz int, d time.Duration) error
	StopTone(ctx context.Context) error
	// ShutdownAll silences the buzzer and clears every output. It may be
	// called more than once.
	ShutdownAll(ctx context.Context) error
}

func checkBank(bank BankID) error {
	if !bank.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownBank, int(bank))
	}
	return nil
}

func checkSensor(sensor SensorID) error {
	if !sensor.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownSensor, int(sensor))
	}
	return nil
}

func checkTone(hz int, d time.Duration) error {
	if hz <= 0 {
		return fmt.Errorf("tone frequency must be positive, got %d", hz)
	}
	if d < 0 {
		return fmt.Errorf("tone duration must not be negative, got %s", d)
	}
	return nil
}
