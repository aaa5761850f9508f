package bus

// MotorCalibration holds the calibration record for a single motor.
//
// HomingOffset and DriveMode define the affine transform between raw
// encoder positions and logical positions. RangeMin/RangeMax record the
// usable range of motion for normalization.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Calibration holds calibration records for all motors on a bus, keyed by
// motor name.
type Calibration map[string]MotorCalibration

// Apply converts a raw position to a logical one:
// negate when drive mode is inverted, then add the homing offset.
func (c MotorCalibration) Apply(v int) int {
	if c.DriveMode != 0 {
		v = -v
	}
	return v + c.HomingOffset
}

// Revert is the exact inverse of Apply, so Revert(Apply(v)) == v for every
// value and both drive modes.
func (c MotorCalibration) Revert(v int) int {
	v -= c.HomingOffset
	if c.DriveMode != 0 {
		v = -v
	}
	return v
}

// Normalize converts a logical position to a value in [-100, 100] over the
// recorded range of motion.
func (c MotorCalibration) Normalize(v int) float64 {
	span := float64(c.RangeMax - c.RangeMin)
	if span == 0 {
		return 0
	}
	return (float64(v-c.RangeMin)/span)*200 - 100
}

// Denormalize converts a value in [-100, 100] back to a logical position.
func (c MotorCalibration) Denormalize(norm float64) int {
	span := float64(c.RangeMax - c.RangeMin)
	return int((norm+100)/200*span) + c.RangeMin
}

// ByID returns the motor name and record for a given bus ID.
func (c Calibration) ByID(id int) (string, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}
