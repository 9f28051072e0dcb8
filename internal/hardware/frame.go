package hardware

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// FrameWidth is the number of outputs on one shift-register bank.
const FrameWidth = 8

// Frame holds the eight output bits of one bank. Index 0 is shifted out
// first.
type Frame [FrameWidth]bool

// Bit is a named position within a Frame. The wiring differs per bank, so
// each bank has its own set of names below.
type Bit uint8

// Bank 1: approach road.
const (
	WarnWL1 Bit = iota
	GreenTL1
	YellowTL1
	RedTL1
	GreenTL2
	YellowTL2
	RedTL2
	SignWL1
)

// Bank 2: shared by the entrance light, the tunnel warning light and the
// pedestrian crossing.
const (
	RedTL3 Bit = iota
	GreenTL3
	RedWL2
	GreenPL1
	RedPL1
	GreenTL4
	YellowTL4
	RedTL4
)

// Bank 3: side-road merge light. Bits 3..7 are not wired.
const (
	GreenTL5 Bit = iota
	HoldTL5
	RedTL5
)

// ParseFrame parses eight 0/1 characters.
func ParseFrame(s string) (Frame, error) {
	var f Frame
	if len(s) != FrameWidth {
		return f, fmt.Errorf("frame %q: want %d bits, got %d", s, FrameWidth, len(s))
	}
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			f[i] = true
		default:
			return f, fmt.Errorf("frame %q: invalid bit %q at %d", s, c, i)
		}
	}
	return f, nil
}

// MustParseFrame is ParseFrame for package-level pattern tables.
func MustParseFrame(s string) Frame {
	f, err := ParseFrame(s)
	if err != nil {
		panic(err)
	}
	return f
}

// String renders the frame as eight 0/1 characters, bit 0 first.
func (f Frame) String() string {
	return strings.Join(lo.Map(f[:], func(on bool, _ int) string {
		return lo.Ternary(on, "1", "0")
	}), "")
}

// Get reports the state of bit b.
func (f Frame) Get(b Bit) bool {
	return f[b]
}

// Set sets bit b and returns the frame for chaining.
func (f *Frame) Set(b Bit, on bool) *Frame {
	f[b] = on
	return f
}

// CopyBits returns f with the listed bits taken from src.
func (f Frame) CopyBits(src Frame, bits ...Bit) Frame {
	for _, b := range bits {
		f[b] = src[b]
	}
	return f
}
