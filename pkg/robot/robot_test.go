package robot

import (
	"context"
	"errors"
	"testing"

	"github.com/tau-robotics/dynarm/pkg/bus"
)

func TestRobotNotConnected(t *testing.T) {
	r := New(nil, nil, nil)
	ctx := context.Background()

	if _, _, err := r.TeleopStep(ctx, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("TeleopStep: %v", err)
	}
	if _, err := r.CaptureObservation(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("CaptureObservation: %v", err)
	}
	if err := r.SendAction(ctx, []float64{0}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAction: %v", err)
	}
	if err := r.Disconnect(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Disconnect: %v", err)
	}
}

func TestRobotConnectTwice(t *testing.T) {
	r := New(nil, nil, nil)
	r.connected = true
	if err := r.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("Connect: %v", err)
	}
}

func TestRobotConnectNoDevices(t *testing.T) {
	r := New(nil, nil, nil)
	if err := r.Connect(context.Background()); err == nil {
		t.Error("expected error connecting an empty robot")
	}
}

func TestRobotArmOrder(t *testing.T) {
	followers := map[string]*bus.Bus{"right": nil, "left": nil, "main": nil}
	r := New(nil, followers, nil)

	want := []string{"left", "main", "right"}
	for i, name := range r.order {
		if name != want[i] {
			t.Fatalf("order = %v, want %v", r.order, want)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &Config{
		Leader:   ArmConfig{Port: "/dev/ttyUSB0"},
		Follower: ArmConfig{Port: "/dev/ttyUSB1"},
		Cameras:  map[string]string{"top": "http://localhost:8080/stream"},
	}
	r, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	if len(r.Leaders) != 1 || len(r.Followers) != 1 {
		t.Fatalf("arms = %d leaders, %d followers", len(r.Leaders), len(r.Followers))
	}
	if got := len(r.Followers["main"].MotorNames()); got != 6 {
		t.Errorf("follower motors = %d, want 6", got)
	}
	if _, ok := r.Cameras["top"]; !ok {
		t.Error("camera missing")
	}
}

func TestMotorLayouts(t *testing.T) {
	leader := LeaderMotors()
	follower := FollowerMotors()
	if len(leader) != 6 || len(follower) != 6 {
		t.Fatalf("layouts = %d, %d motors", len(leader), len(follower))
	}
	for i, m := range leader {
		if m.ID != i+1 {
			t.Errorf("leader %s ID = %d, want %d", m.Name, m.ID, i+1)
		}
		if m.Model != "xl330-m077" {
			t.Errorf("leader %s model = %s", m.Name, m.Model)
		}
	}
	for i, m := range follower {
		want := "xl330-m288"
		if i < 2 {
			want = "xl430-w250"
		}
		if m.Model != want {
			t.Errorf("follower %s model = %s, want %s", m.Name, m.Model, want)
		}
	}
	if follower[5].Name != string(Gripper) {
		t.Errorf("last motor = %s, want gripper", follower[5].Name)
	}
}
