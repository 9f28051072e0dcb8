package tunnel

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tunnelguard/internal/hardware"
)

// SensorReading is one filtered distance from one sensor. Valid is false when
// too few probes returned a usable echo; that case is treated as "far away"
// everywhere.
type SensorReading struct {
	Sensor hardware.SensorID
	CM     float64
	Valid  bool
}

// Present reports a reading strictly closer than threshold.
func (r SensorReading) Present(threshold float64) bool {
	return r.Valid && r.CM < threshold
}

// Clear reports no reading or a reading strictly beyond threshold. A reading
// exactly at the threshold is neither present nor clear.
func (r SensorReading) Clear(threshold float64) bool {
	return !r.Valid || r.CM > threshold
}

func (r SensorReading) String() string {
	if !r.Valid {
		return "-"
	}
	return fmt.Sprintf("%.1fcm", r.CM)
}

// Readings holds one reading per sensor, indexed by sensor id.
type Readings [3]SensorReading

// Get returns the reading for sensor.
func (r Readings) Get(sensor hardware.SensorID) SensorReading {
	if !sensor.Valid() {
		return SensorReading{Sensor: sensor}
	}
	return r[sensor-1]
}

func (r Readings) String() string {
	return fmt.Sprintf("us1=%s us2=%s us3=%s", r[0], r[1], r[2])
}

// Sampler turns repeated raw probes into one filtered reading.
type Sampler struct {
	hw       hardware.Hardware
	probes   int
	minValid int
}

// NewSampler takes probes raw probes per reading and needs minValid of them
// to have a positive echo.
func NewSampler(hw hardware.Hardware, probes, minValid int) *Sampler {
	return &Sampler{hw: hw, probes: probes, minValid: minValid}
}

// Sample probes sensor and returns the mean of the valid probes, or an
// invalid reading when fewer than minValid remain. A probe that errors counts
// as a probe with no echo; the first such error is returned alongside the
// reading.
func (s *Sampler) Sample(ctx context.Context, sensor hardware.SensorID) (SensorReading, error) {
	var (
		echoes   []float64
		firstErr error
		failed   int
	)
	for i := 0; i < s.probes; i++ {
		cm, ok, err := s.hw.ProbeDistance(ctx, sensor)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			echoes = append(echoes, cm)
		}
	}

	valid := lo.Filter(echoes, func(cm float64, _ int) bool { return cm > 0 })
	reading := SensorReading{Sensor: sensor}
	if len(valid) >= s.minValid {
		reading.CM = stat.Mean(valid, nil)
		reading.Valid = true
	}

	if firstErr != nil {
		return reading, fmt.Errorf("%d of %d probes of %s failed: %w", failed, s.probes, sensor, firstErr)
	}
	return reading, nil
}

// SampleAll samples every sensor in order.
func (s *Sampler) SampleAll(ctx context.Context) (Readings, error) {
	var (
		out  Readings
		errs []error
	)
	for _, sensor := range hardware.Sensors {
		r, err := s.Sample(ctx, sensor)
		out[sensor-1] = r
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}
