package tunnel

import "github.com/banshee-data/tunnelguard/internal/hardware"

// Normal traffic flow, one frame per bank.
var (
	baselineApproach = hardware.MustParseFrame("01001000")
	baselineShared   = hardware.MustParseFrame("01001100")
	baselineSideRoad = hardware.MustParseFrame("00100000")
)

// Approach warning patterns on bank 1.
var (
	approachQuiet    = hardware.MustParseFrame("01000101")
	approachAlert    = hardware.MustParseFrame("00100011")
	approachFlashOn  = hardware.MustParseFrame("10010011")
	approachFlashOff = hardware.MustParseFrame("00010011")
)

// Side-road merge patterns on bank 3.
var (
	mergeHold     = hardware.MustParseFrame("01000000")
	mergeGo       = hardware.MustParseFrame("10000000")
	mergeFlashOff = hardware.MustParseFrame("00000000")
)

// sharedTrafficBits are the bank 2 outputs owned by the entrance light, the
// tunnel warning light and the crossing-road light. The remaining bits drive
// the pedestrian light.
var sharedTrafficBits = []hardware.Bit{
	hardware.RedTL3,
	hardware.GreenTL3,
	hardware.RedWL2,
	hardware.GreenTL4,
	hardware.YellowTL4,
	hardware.RedTL4,
}

// Baseline returns the normal-flow frame for bank.
func Baseline(bank hardware.BankID) hardware.Frame {
	switch bank {
	case hardware.BankApproach:
		return baselineApproach
	case hardware.BankShared:
		return baselineShared
	case hardware.BankSideRoad:
		return baselineSideRoad
	}
	return hardware.Frame{}
}

func flashFrame(on bool, lit, dark hardware.Frame) hardware.Frame {
	if on {
		return lit
	}
	return dark
}
