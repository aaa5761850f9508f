package robot

import (
	"context"
	"fmt"

	"github.com/tau-robotics/dynarm/pkg/bus"
)

// Pose-based calibration.
//
// The arm is moved by hand to two reference poses. The first pose defines
// the logical zero of every joint; the second rotates every joint a quarter
// turn clockwise. Comparing actual encoder readings against these targets
// yields each motor's homing offset and drive mode.

// QuarterTurn is the encoder step count of a 90 degree rotation, assuming
// 4096 steps per revolution.
const QuarterTurn = 1024

// ZeroPose and RotatedPose are the target positions of the two reference
// poses for a six-joint arm.
var (
	ZeroPose    = []int{0, 0, 0, 0, 0, 0}
	RotatedPose = []int{1024, 1024, 1024, 1024, 1024, 1024}
)

// nearestRounded snaps a position to the nearest multiple of step.
func nearestRounded(position, step int) int {
	if step == 0 {
		return position
	}
	half := step / 2
	if position >= 0 {
		return (position + half) / step * step
	}
	return -((-position + half) / step * step)
}

// HomingOffsets computes per-motor homing offsets so that the observed
// positions map onto the target pose: target = position + offset.
func HomingOffsets(positions, targets []int) []int {
	offsets := make([]int, len(positions))
	for i := range positions {
		offsets[i] = targets[i] - nearestRounded(positions[i], QuarterTurn)
	}
	return offsets
}

// DriveModes compares positions observed at the rotated pose, shifted by
// the homing offsets, against the rotated targets. A joint that does not
// land on its target rotates in the inverted direction and gets drive
// mode 1.
func DriveModes(positions, offsets, targets []int) []int {
	modes := make([]int, len(positions))
	for i := range positions {
		shifted := nearestRounded(positions[i]+offsets[i], QuarterTurn)
		if shifted != targets[i] {
			modes[i] = 1
		}
	}
	return modes
}

// RefineHomingOffsets recomputes the homing offsets at the rotated pose
// with drive modes taken into account, so the final transform satisfies
// target = sign(driveMode)*position + offset.
func RefineHomingOffsets(positions, driveModes, targets []int) []int {
	offsets := make([]int, len(positions))
	for i := range positions {
		p := positions[i]
		if driveModes[i] != 0 {
			p = -p
		}
		offsets[i] = targets[i] - nearestRounded(p, QuarterTurn)
	}
	return offsets
}

// ResetArm puts an arm's bus into the state the calibration and
// teleoperation procedures expect: torque off everywhere, extended
// position mode on the joints, current-controlled position mode on the
// gripper.
func ResetArm(ctx context.Context, b *bus.Bus) error {
	if err := b.WriteAll(ctx, bus.RegTorqueEnable, bus.TorqueDisabled); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}

	// Joint mode caps rotation at a single turn, which can clip joints
	// that were assembled near an encoder wrap. Extended position mode
	// avoids that.
	var joints []string
	for _, name := range b.MotorNames() {
		if name != string(Gripper) {
			joints = append(joints, name)
		}
	}
	if len(joints) > 0 {
		modes := make([]int, len(joints))
		for i := range modes {
			modes[i] = bus.ModeExtendedPosition
		}
		if err := b.Write(ctx, bus.RegOperatingMode, modes, joints...); err != nil {
			return fmt.Errorf("set operating mode: %w", err)
		}
	}

	if err := b.WriteOne(ctx, bus.RegOperatingMode, bus.ModeCurrentControlledPosition, string(Gripper)); err != nil {
		return fmt.Errorf("set gripper mode: %w", err)
	}
	return nil
}
