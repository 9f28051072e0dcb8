package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Segment is one piece of a sensor timeline. It applies from its offset
// until the next segment starts. A nil CM means the sensor returns no echo.
type Segment struct {
	From time.Duration `yaml:"from"`
	CM   *float64      `yaml:"cm"`
}

// ButtonSegment is one piece of the button timeline.
type ButtonSegment struct {
	From    time.Duration `yaml:"from"`
	Pressed bool          `yaml:"pressed"`
}

// Script describes what the simulated sensors and button report over time,
// measured from the moment the Sim is created. A sensor with no timeline, or
// an offset before its first segment, reports no echo.
type Script struct {
	Name     string                 `yaml:"name"`
	Duration time.Duration          `yaml:"duration"`
	Sensors  map[SensorID][]Segment `yaml:"sensors"`
	Button   []ButtonSegment        `yaml:"button"`
}

// Reading builds a Segment with an echo at cm.
func Reading(from time.Duration, cm float64) Segment {
	return Segment{From: from, CM: &cm}
}

// NoReading builds a Segment with no echo.
func NoReading(from time.Duration) Segment {
	return Segment{From: from}
}

// Validate checks sensor ids and that every timeline is ordered.
func (s *Script) Validate() error {
	for id, segs := range s.Sensors {
		if err := checkSensor(id); err != nil {
			return fmt.Errorf("script %q: %w", s.Name, err)
		}
		if !sort.SliceIsSorted(segs, func(i, j int) bool { return segs[i].From < segs[j].From }) {
			return fmt.Errorf("script %q: sensor %d segments out of order", s.Name, int(id))
		}
		for _, seg := range segs {
			if seg.From < 0 {
				return fmt.Errorf("script %q: sensor %d segment has negative offset %s", s.Name, int(id), seg.From)
			}
		}
	}
	if !sort.SliceIsSorted(s.Button, func(i, j int) bool { return s.Button[i].From < s.Button[j].From }) {
		return fmt.Errorf("script %q: button segments out of order", s.Name)
	}
	if s.Duration < 0 {
		return fmt.Errorf("script %q: negative duration %s", s.Name, s.Duration)
	}
	return nil
}

// DistanceAt returns what sensor reports at offset elapsed.
func (s *Script) DistanceAt(sensor SensorID, elapsed time.Duration) (float64, bool) {
	seg, _, found := lo.FindLastIndexOf(s.Sensors[sensor], func(seg Segment) bool {
		return seg.From <= elapsed
	})
	if !found || seg.CM == nil {
		return 0, false
	}
	return *seg.CM, true
}

// PressedAt returns the button level at offset elapsed.
func (s *Script) PressedAt(elapsed time.Duration) bool {
	seg, _, found := lo.FindLastIndexOf(s.Button, func(seg ButtonSegment) bool {
		return seg.From <= elapsed
	})
	return found && seg.Pressed
}

// ParseScript decodes a YAML scenario.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads a YAML scenario from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = filepath.Base(path)
	}
	return s, nil
}
