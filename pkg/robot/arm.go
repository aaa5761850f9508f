package robot

import (
	"context"
	"fmt"

	"github.com/tau-robotics/dynarm/pkg/bus"
)

// Arm represents a robot arm: one motor bus with calibration applied.
type Arm struct {
	bus         *bus.Bus
	calibration bus.Calibration
}

// NewArm creates and connects an arm.
func NewArm(cfg ArmConfig, motors []bus.Motor) (*Arm, error) {
	b, err := bus.New(bus.Config{
		Port:   cfg.Port,
		Motors: motors,
	})
	if err != nil {
		return nil, fmt.Errorf("create bus: %w", err)
	}
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect bus: %w", err)
	}
	b.SetCalibration(cfg.Calibration)

	return &Arm{
		bus:         b,
		calibration: cfg.Calibration,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Bus exposes the underlying motor bus.
func (a *Arm) Bus() *bus.Bus { return a.bus }

// Enable enables torque on all motors.
func (a *Arm) Enable(ctx context.Context) error {
	return a.bus.WriteAll(ctx, bus.RegTorqueEnable, bus.TorqueEnabled)
}

// Disable disables torque on all motors.
func (a *Arm) Disable(ctx context.Context) error {
	return a.bus.WriteAll(ctx, bus.RegTorqueEnable, bus.TorqueDisabled)
}

// ReadPositions reads current positions from all motors.
// Returns normalized positions in the range [-100, 100].
func (a *Arm) ReadPositions(ctx context.Context) (map[MotorName]float64, error) {
	raw, err := a.bus.Read(ctx, bus.RegPresentPosition)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(map[MotorName]float64, len(raw))
	for i, name := range a.bus.MotorNames() {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		positions[MotorName(name)] = cal.Normalize(raw[i])
	}
	return positions, nil
}

// WritePositions writes target positions to all motors.
// Takes normalized positions in the range [-100, 100].
func (a *Arm) WritePositions(ctx context.Context, positions map[MotorName]float64) error {
	names := make([]string, 0, len(positions))
	values := make([]int, 0, len(positions))
	for _, name := range a.bus.MotorNames() {
		norm, ok := positions[MotorName(name)]
		if !ok {
			continue
		}
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		names = append(names, name)
		values = append(values, cal.Denormalize(norm))
	}

	if err := a.bus.Write(ctx, bus.RegGoalPosition, values, names...); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}
