// Package dynarm provides teleoperation, recording and replay for
// Dynamixel-based leader-follower robot arms.
//
// A passive leader arm is moved by hand; a follower arm mirrors it over a
// Dynamixel Protocol 2.0 serial bus. Demonstrations can be recorded to a
// local dataset, together with camera frames, and replayed later.
//
// # Installation
//
//	go install github.com/tau-robotics/dynarm/cmd/dynarm@latest
//
// # Usage
//
// First, run setup to detect and calibrate your robot arms:
//
//	dynarm setup
//
// Then start teleoperation:
//
//	dynarm teleoperate
//
// Record and replay demonstrations:
//
//	dynarm record --episodes 10
//	dynarm replay --episode 0
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/dynarm: CLI with setup, teleoperate, record, replay, stats and info commands
//   - pkg/bus: Dynamixel Protocol 2.0 motor bus and calibration transforms
//   - pkg/robot: Arm composition, pose calibration, and configuration
//   - pkg/teleop: Teleoperation controller
//   - pkg/camera: MJPEG camera capture
//   - pkg/dataset: Episode storage, statistics, recording and replay
package dynarm
