package robot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tau-robotics/dynarm/pkg/bus"
	"github.com/tau-robotics/dynarm/pkg/camera"
)

var (
	// ErrNotConnected is returned when operating on a robot before
	// Connect.
	ErrNotConnected = errors.New("robot is not connected")
	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("robot is already connected")
)

// Gripper trigger position for the leader arm: held open slightly so
// squeezing it closes the follower gripper.
const leaderGripperOpen = 400

// Observation is the sensor snapshot of one control step.
type Observation struct {
	// State is the follower joint positions, one value per motor per
	// follower arm, in arm then motor order.
	State []float64
	// Images holds the latest cached frame of each camera.
	Images map[string]camera.Frame
}

// Action is the command issued during one control step.
type Action struct {
	// Goal is the goal positions sent to the followers, in the same
	// layout as Observation.State.
	Goal []float64
}

// Robot composes leader arms, follower arms and cameras.
//
// Leader and follower maps share keys: leader "main" drives follower
// "main". All hardware I/O is synchronous; cameras capture in the
// background and only their latest cached frame is read here.
type Robot struct {
	Leaders   map[string]*bus.Bus
	Followers map[string]*bus.Bus
	Cameras   map[string]camera.Camera

	// order fixes the iteration order of the arm maps.
	order []string

	connected bool

	// Timings records the duration of the last hardware call per device,
	// for loop budget debugging.
	Timings map[string]time.Duration
}

// New creates a robot from its devices. Arms are matched leader to
// follower by map key.
func New(leaders, followers map[string]*bus.Bus, cameras map[string]camera.Camera) *Robot {
	var order []string
	for name := range followers {
		order = append(order, name)
	}
	sort.Strings(order)
	return &Robot{
		Leaders:   leaders,
		Followers: followers,
		Cameras:   cameras,
		order:     order,
		Timings:   make(map[string]time.Duration),
	}
}

// FromConfig builds a single leader/follower robot from a config file.
func FromConfig(cfg *Config) (*Robot, error) {
	leader, err := bus.New(bus.Config{Port: cfg.Leader.Port, Motors: LeaderMotors()})
	if err != nil {
		return nil, fmt.Errorf("leader bus: %w", err)
	}
	leader.SetCalibration(cfg.Leader.Calibration)

	follower, err := bus.New(bus.Config{Port: cfg.Follower.Port, Motors: FollowerMotors()})
	if err != nil {
		return nil, fmt.Errorf("follower bus: %w", err)
	}
	follower.SetCalibration(cfg.Follower.Calibration)

	cameras := make(map[string]camera.Camera, len(cfg.Cameras))
	for name, url := range cfg.Cameras {
		cameras[name] = camera.NewMJPEG(url)
	}

	return New(
		map[string]*bus.Bus{"main": leader},
		map[string]*bus.Bus{"main": follower},
		cameras,
	), nil
}

// Connect opens all buses and cameras and prepares the arms for
// teleoperation: followers get torque enabled, leaders stay passive except
// for the gripper, which is held open as a trigger.
func (r *Robot) Connect(ctx context.Context) error {
	if r.connected {
		return ErrAlreadyConnected
	}
	if len(r.Leaders) == 0 && len(r.Followers) == 0 && len(r.Cameras) == 0 {
		return errors.New("robot has no devices to connect")
	}

	for _, name := range r.order {
		if err := r.Followers[name].Connect(); err != nil {
			return fmt.Errorf("connect follower %s: %w", name, err)
		}
		if leader, ok := r.Leaders[name]; ok {
			if err := leader.Connect(); err != nil {
				return fmt.Errorf("connect leader %s: %w", name, err)
			}
		}
	}

	for _, name := range r.order {
		if err := ResetArm(ctx, r.Followers[name]); err != nil {
			return fmt.Errorf("reset follower %s: %w", name, err)
		}
		if leader, ok := r.Leaders[name]; ok {
			if err := ResetArm(ctx, leader); err != nil {
				return fmt.Errorf("reset leader %s: %w", name, err)
			}
		}
	}

	for _, name := range r.order {
		follower := r.Followers[name]
		if err := follower.WriteAll(ctx, bus.RegTorqueEnable, bus.TorqueEnabled); err != nil {
			return fmt.Errorf("enable follower %s: %w", name, err)
		}

		// Tighter PID on the elbow closes the gap between recorded
		// states and actions.
		for reg, gain := range map[bus.Register]int{
			bus.RegPositionPGain: 1500,
			bus.RegPositionIGain: 0,
			bus.RegPositionDGain: 600,
		} {
			if err := follower.WriteOne(ctx, reg, gain, string(ElbowFlex)); err != nil {
				return fmt.Errorf("tune follower %s: %w", name, err)
			}
		}
	}

	for name, leader := range r.Leaders {
		if err := leader.WriteOne(ctx, bus.RegTorqueEnable, bus.TorqueEnabled, string(Gripper)); err != nil {
			return fmt.Errorf("enable leader %s gripper: %w", name, err)
		}
		if err := leader.WriteOne(ctx, bus.RegGoalPosition, leaderGripperOpen, string(Gripper)); err != nil {
			return fmt.Errorf("open leader %s gripper: %w", name, err)
		}
	}

	for name, cam := range r.Cameras {
		if err := cam.Connect(ctx); err != nil {
			return fmt.Errorf("connect camera %s: %w", name, err)
		}
	}

	r.connected = true
	return nil
}

// TeleopStep runs one leader-to-follower control step. With record set it
// also captures and returns the observation and action of the step.
func (r *Robot) TeleopStep(ctx context.Context, record bool) (*Observation, *Action, error) {
	if !r.connected {
		return nil, nil, ErrNotConnected
	}

	goals := make(map[string][]int, len(r.order))
	for _, name := range r.order {
		leader, ok := r.Leaders[name]
		if !ok {
			continue
		}
		start := time.Now()
		pos, err := leader.Read(ctx, bus.RegPresentPosition)
		r.Timings["read_leader_"+name] = time.Since(start)
		if err != nil {
			return nil, nil, fmt.Errorf("read leader %s: %w", name, err)
		}
		goals[name] = pos
	}

	for _, name := range r.order {
		goal, ok := goals[name]
		if !ok {
			continue
		}
		start := time.Now()
		err := r.Followers[name].Write(ctx, bus.RegGoalPosition, goal)
		r.Timings["write_follower_"+name] = time.Since(start)
		if err != nil {
			return nil, nil, fmt.Errorf("write follower %s: %w", name, err)
		}
	}

	if !record {
		return nil, nil, nil
	}

	obs, err := r.captureObservation(ctx)
	if err != nil {
		return nil, nil, err
	}

	action := &Action{}
	for _, name := range r.order {
		for _, v := range goals[name] {
			action.Goal = append(action.Goal, float64(v))
		}
	}
	return obs, action, nil
}

// CaptureObservation reads the follower state and the latest camera
// frames.
func (r *Robot) CaptureObservation(ctx context.Context) (*Observation, error) {
	if !r.connected {
		return nil, ErrNotConnected
	}
	return r.captureObservation(ctx)
}

func (r *Robot) captureObservation(ctx context.Context) (*Observation, error) {
	obs := &Observation{Images: make(map[string]camera.Frame, len(r.Cameras))}

	for _, name := range r.order {
		start := time.Now()
		pos, err := r.Followers[name].Read(ctx, bus.RegPresentPosition)
		r.Timings["read_follower_"+name] = time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("read follower %s: %w", name, err)
		}
		for _, v := range pos {
			obs.State = append(obs.State, float64(v))
		}
	}

	for name, cam := range r.Cameras {
		start := time.Now()
		frame, err := cam.Frame()
		r.Timings["read_camera_"+name] = time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("read camera %s: %w", name, err)
		}
		obs.Images[name] = frame
	}
	return obs, nil
}

// SendAction writes a goal position vector to the followers. The vector
// layout matches Observation.State.
func (r *Robot) SendAction(ctx context.Context, action []float64) error {
	if !r.connected {
		return ErrNotConnected
	}

	from := 0
	for _, name := range r.order {
		follower := r.Followers[name]
		n := len(follower.MotorNames())
		if from+n > len(action) {
			return fmt.Errorf("action vector too short: got %d values", len(action))
		}
		goal := make([]int, n)
		for i := range n {
			goal[i] = int(action[from+i])
		}
		from += n
		if err := follower.Write(ctx, bus.RegGoalPosition, goal); err != nil {
			return fmt.Errorf("write follower %s: %w", name, err)
		}
	}
	return nil
}

// Disconnect closes all buses and cameras.
func (r *Robot) Disconnect() error {
	if !r.connected {
		return ErrNotConnected
	}

	var errs []error
	for name, b := range r.Followers {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close follower %s: %w", name, err))
		}
	}
	for name, b := range r.Leaders {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close leader %s: %w", name, err))
		}
	}
	for name, cam := range r.Cameras {
		if err := cam.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close camera %s: %w", name, err))
		}
	}

	r.connected = false
	return errors.Join(errs...)
}
