package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/tunnelguard/internal/timeutil"
)

// BankWrite records one WriteBank call on a Sim.
type BankWrite struct {
	At    time.Duration
	Bank  BankID
	Frame Frame
}

// ToneEvent records one SetTone or StopTone call on a Sim. Duration zero on
// a start event means sustain.
type ToneEvent struct {
	At       time.Duration
	Hz       int
	Duration time.Duration
	Stop     bool
}

// Sim is a Hardware implementation driven by a Script and a clock. Offsets in
// the script and in the recorded events are measured from NewSim. It is safe
// for concurrent use.
type Sim struct {
	clock  timeutil.Clock
	start  time.Time
	script Script

	mu        sync.Mutex
	banks     [3]Frame
	writes    []BankWrite
	tones     []ToneEvent
	probes    map[SensorID]int
	failBanks map[BankID]error
	shutdowns int
	closed    bool
}

var _ Hardware = (*Sim)(nil)

// NewSim starts a simulation of script at the clock's current time.
func NewSim(clock timeutil.Clock, script Script) *Sim {
	return &Sim{
		clock:     clock,
		start:     clock.Now(),
		script:    script,
		probes:    make(map[SensorID]int),
		failBanks: make(map[BankID]error),
	}
}

// Elapsed returns the time since the simulation started.
func (s *Sim) Elapsed() time.Duration {
	return s.clock.Since(s.start)
}

// Script returns the scenario being played.
func (s *Sim) Script() Script {
	return s.script
}

// FailBank makes every later write to bank return err. A nil err clears it.
func (s *Sim) FailBank(bank BankID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failBanks, bank)
		return
	}
	s.failBanks[bank] = err
}

func (s *Sim) ProbeDistance(_ context.Context, sensor SensorID) (float64, bool, error) {
	if err := checkSensor(sensor); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, ErrClosed
	}
	s.probes[sensor]++
	cm, ok := s.script.DistanceAt(sensor, s.Elapsed())
	return cm, ok, nil
}

func (s *Sim) ReadButton(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.script.PressedAt(s.Elapsed()), nil
}

func (s *Sim) WriteBank(_ context.Context, bank BankID, frame Frame) error {
	if err := checkBank(bank); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.failBanks[bank]; err != nil {
		return err
	}
	s.banks[bank-1] = frame
	s.writes = append(s.writes, BankWrite{At: s.Elapsed(), Bank: bank, Frame: frame})
	return nil
}

func (s *Sim) SetTone(_ context.Context, hz int, d time.Duration) error {
	if err := checkTone(hz, d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tones = append(s.tones, ToneEvent{At: s.Elapsed(), Hz: hz, Duration: d})
	return nil
}

func (s *Sim) StopTone(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tones = append(s.tones, ToneEvent{At: s.Elapsed(), Stop: true})
	return nil
}

// ShutdownAll zeroes every bank and silences the tone. Bank write failures
// injected with FailBank do not apply here, the controller clears its
// outputs directly.
func (s *Sim) ShutdownAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns++
	if s.closed {
		return nil
	}
	s.banks = [3]Frame{}
	s.tones = append(s.tones, ToneEvent{At: s.Elapsed(), Stop: true})
	s.closed = true
	return nil
}

// Bank returns the last frame latched on bank.
func (s *Sim) Bank(bank BankID) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !bank.Valid() {
		return Frame{}
	}
	return s.banks[bank-1]
}

// Writes returns every recorded bank write in order.
func (s *Sim) Writes() []BankWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BankWrite(nil), s.writes...)
}

// Tones returns every recorded tone command in order.
func (s *Sim) Tones() []ToneEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToneEvent(nil), s.tones...)
}

// Tone returns the tone currently sounding at the clock's time. A timed
// tone that has run out counts as silent.
func (s *Sim) Tone() (hz int, sounding bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tones) == 0 {
		return 0, false
	}
	last := s.tones[len(s.tones)-1]
	if last.Stop {
		return 0, false
	}
	if last.Duration > 0 && s.Elapsed() >= last.At+last.Duration {
		return 0, false
	}
	return last.Hz, true
}

// Probes returns how many probes sensor has answered.
func (s *Sim) Probes(sensor SensorID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes[sensor]
}

// Shutdowns returns how many times ShutdownAll was called.
func (s *Sim) Shutdowns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdowns
}
