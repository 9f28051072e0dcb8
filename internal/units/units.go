// Package units converts between scale-model measurements and the real-world
// quantities they stand for.
package units

// Length unit constants
const (
	CM = "cm"
	M  = "m"
)

// ConvertLength converts a length in centimetres to the target units.
// Unknown units fall back to centimetres.
func ConvertLength(cm float64, targetUnits string) float64 {
	switch targetUnits {
	case M:
		return cm / 100
	default:
		return cm
	}
}

// Scale maps model-scale lengths to the real-world lengths they represent.
// Ratio is real:model, so a ratio of 20 means 1 cm on the model is 20 cm on
// the road.
type Scale struct {
	Ratio float64
}

// ToReal converts a model length in centimetres to a real length in the
// target units.
func (s Scale) ToReal(modelCM float64, targetUnits string) float64 {
	return ConvertLength(modelCM*s.Ratio, targetUnits)
}

// VehicleHeight estimates the real height of a vehicle in metres from the
// distance an overhead sensor mounted clearanceCM above the model road
// measured down to the vehicle roof. Readings at or beyond the clearance mean
// nothing is under the sensor and yield zero.
func (s Scale) VehicleHeight(clearanceCM, distanceCM float64) float64 {
	if distanceCM >= clearanceCM {
		return 0
	}
	return s.ToReal(clearanceCM-distanceCM, M)
}
