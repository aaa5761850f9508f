// Package robot composes motor buses and cameras into a robot that can be
// teleoperated, calibrated, and used to record or replay demonstrations.
package robot

import "github.com/tau-robotics/dynarm/pkg/bus"

// MotorName identifies a joint in the arm.
type MotorName string

// Motor names for a six-joint arm, in bus ID order (IDs 1-6).
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all motor names in order (matching bus IDs 1-6).
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// LeaderMotors is the bus layout of a leader arm: all XL330-M077, the
// low-torque variant that is easy to move by hand.
func LeaderMotors() []bus.Motor {
	motors := make([]bus.Motor, 0, 6)
	for i, name := range AllMotors() {
		motors = append(motors, bus.Motor{Name: string(name), ID: i + 1, Model: "xl330-m077"})
	}
	return motors
}

// FollowerMotors is the bus layout of a follower arm: XL430-W250 for the
// two shoulder joints, XL330-M288 for the rest.
func FollowerMotors() []bus.Motor {
	motors := make([]bus.Motor, 0, 6)
	for i, name := range AllMotors() {
		model := "xl330-m288"
		if i < 2 {
			model = "xl430-w250"
		}
		motors = append(motors, bus.Motor{Name: string(name), ID: i + 1, Model: model})
	}
	return motors
}
