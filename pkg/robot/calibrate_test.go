package robot

import (
	"testing"

	"github.com/tau-robotics/dynarm/pkg/bus"
)

func TestNearestRounded(t *testing.T) {
	tests := []struct {
		position, step, want int
	}{
		{0, 1024, 0},
		{100, 1024, 0},
		{511, 1024, 0},
		{512, 1024, 1024},
		{1000, 1024, 1024},
		{1536, 1024, 2048},
		{-100, 1024, 0},
		{-600, 1024, -1024},
		{-1536, 1024, -2048},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := nearestRounded(tt.position, tt.step); got != tt.want {
			t.Errorf("nearestRounded(%d, %d) = %d, want %d", tt.position, tt.step, got, tt.want)
		}
	}
}

func TestHomingOffsets(t *testing.T) {
	// Encoders at assembly offsets of one or two quarter turns, plus a bit
	// of hand jitter from holding the pose.
	positions := []int{1030, 2040, -1020, 15, 1024, 3060}
	offsets := HomingOffsets(positions, ZeroPose)

	want := []int{-1024, -2048, 1024, 0, -1024, -3072}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset[%d] = %d, want %d", i, offsets[i], want[i])
		}
	}
}

func TestDriveModes(t *testing.T) {
	// Joints 0 and 2 move the wrong way: a quarter turn clockwise at the
	// horn shows up as a negative encoder delta.
	zeroPositions := []int{10, 2040, -5, 0, 1030, 0}
	offsets := HomingOffsets(zeroPositions, ZeroPose)

	rotated := []int{-1014, 3064, -1029, 1020, 2050, 1024}
	modes := DriveModes(rotated, offsets, RotatedPose)

	want := []int{1, 0, 1, 0, 0, 0}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("mode[%d] = %d, want %d", i, modes[i], want[i])
		}
	}
}

func TestRefineHomingOffsets(t *testing.T) {
	rotated := []int{-1014, 3064, -1029, 1020, 2050, 1024}
	modes := []int{1, 0, 1, 0, 0, 0}
	offsets := RefineHomingOffsets(rotated, modes, RotatedPose)

	// The refined transform must land each rotated reading on its target.
	for i := range rotated {
		cal := bus.MotorCalibration{DriveMode: modes[i], HomingOffset: offsets[i]}
		got := cal.Apply(nearestRounded(rotated[i], QuarterTurn))
		if got != RotatedPose[i] {
			t.Errorf("joint %d: Apply = %d, want %d", i, got, RotatedPose[i])
		}
	}
}

func TestCalibrationPipeline(t *testing.T) {
	// Full derivation: simulate an arm whose true transform is known and
	// check the procedure recovers it from the two poses.
	type joint struct {
		driveMode int
		offset    int // true homing offset in encoder ticks
	}
	joints := []joint{
		{0, -2048}, {1, 1024}, {0, 0}, {1, -1024}, {0, 3072}, {0, -1024},
	}

	// Encoder reading at a given logical position: invert the calibration
	// transform, plus small pose error.
	encoder := func(j joint, logical, jitter int) int {
		v := logical - j.offset
		if j.driveMode != 0 {
			v = -v
		}
		return v + jitter
	}

	zeroPos := make([]int, len(joints))
	rotPos := make([]int, len(joints))
	for i, j := range joints {
		zeroPos[i] = encoder(j, ZeroPose[i], 7*(i-3))
		rotPos[i] = encoder(j, RotatedPose[i], 5*(3-i))
	}

	offsets := HomingOffsets(zeroPos, ZeroPose)
	modes := DriveModes(rotPos, offsets, RotatedPose)
	final := RefineHomingOffsets(rotPos, modes, RotatedPose)

	for i, j := range joints {
		if modes[i] != j.driveMode {
			t.Errorf("joint %d: drive mode %d, want %d", i, modes[i], j.driveMode)
		}
		if final[i] != j.offset {
			t.Errorf("joint %d: homing offset %d, want %d", i, final[i], j.offset)
		}
	}
}
