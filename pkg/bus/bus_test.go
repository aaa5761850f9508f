package bus

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// fakePort is an in-memory serial port. Reads drain a response queue;
// an empty queue behaves like a serial timeout (zero bytes, nil error).
type fakePort struct {
	wrote     bytes.Buffer
	responses bytes.Buffer
	closed    bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.responses.Len() == 0 {
		return 0, nil
	}
	return f.responses.Read(p)
}

func (f *fakePort) Write(p []byte) (int, error) {
	return f.wrote.Write(p)
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

// queueStatus appends a status packet to the response queue.
func (f *fakePort) queueStatus(id, status byte, params []byte) {
	f.responses.Write(buildPacket(id, instStatus, append([]byte{status}, params...)))
}

func testBus(t *testing.T) (*Bus, *fakePort) {
	t.Helper()
	b, err := New(Config{
		Port: "/dev/ttyTEST0",
		Motors: []Motor{
			{Name: "shoulder_pan", ID: 1, Model: "xl330-m077"},
			{Name: "shoulder_lift", ID: 2, Model: "xl330-m077"},
			{Name: "gripper", ID: 6, Model: "xl330-m077"},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	port := &fakePort{}
	b.port = port
	return b, port
}

func TestReadNotConnected(t *testing.T) {
	b, _ := testBus(t)
	b.port = nil

	if _, err := b.Read(context.Background(), RegPresentPosition); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Read on unconnected bus: err = %v, want ErrNotConnected", err)
	}
	if err := b.Write(context.Background(), RegTorqueEnable, []int{1, 1, 1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write on unconnected bus: err = %v, want ErrNotConnected", err)
	}
}

func TestReadPositions(t *testing.T) {
	b, port := testBus(t)
	ctx := context.Background()

	port.queueStatus(1, 0, []byte{0x00, 0x04, 0x00, 0x00}) // 1024
	port.queueStatus(2, 0, []byte{0x00, 0xF8, 0xFF, 0xFF}) // -2048 as uint32
	port.queueStatus(6, 0, []byte{0xFF, 0x0F, 0x00, 0x00}) // 4095

	values, err := b.Read(ctx, RegPresentPosition)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []int{1024, -2048, 4095}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %d, want %d", i, values[i], want[i])
		}
	}

	// The sync read instruction addresses Present_Position (132, 4 bytes)
	// for IDs 1, 2, 6.
	wantPkt := buildPacket(broadcastID, instSyncRead, []byte{132, 0, 4, 0, 1, 2, 6})
	if !bytes.Equal(port.wrote.Bytes(), wantPkt) {
		t.Errorf("sync read packet = % X, want % X", port.wrote.Bytes(), wantPkt)
	}
}

func TestReadOutOfOrderResponses(t *testing.T) {
	b, port := testBus(t)

	port.queueStatus(6, 0, []byte{0x03, 0x00, 0x00, 0x00})
	port.queueStatus(1, 0, []byte{0x01, 0x00, 0x00, 0x00})
	port.queueStatus(2, 0, []byte{0x02, 0x00, 0x00, 0x00})

	values, err := b.Read(context.Background(), RegPresentPosition)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []int{1, 2, 3}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %d, want %d", i, values[i], want[i])
		}
	}
}

func TestReadAppliesCalibration(t *testing.T) {
	b, port := testBus(t)
	b.SetCalibration(Calibration{
		"shoulder_pan":  {ID: 1, HomingOffset: 100},
		"shoulder_lift": {ID: 2, DriveMode: 1},
		"gripper":       {ID: 6, DriveMode: 1, HomingOffset: -50},
	})

	port.queueStatus(1, 0, []byte{0x0A, 0x00, 0x00, 0x00}) // 10
	port.queueStatus(2, 0, []byte{0x14, 0x00, 0x00, 0x00}) // 20
	port.queueStatus(6, 0, []byte{0x1E, 0x00, 0x00, 0x00}) // 30

	values, err := b.Read(context.Background(), RegPresentPosition)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []int{110, -20, -80}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %d, want %d", i, values[i], want[i])
		}
	}
}

func TestReadUncalibratedRegister(t *testing.T) {
	// Calibration must not touch non-position registers.
	b, port := testBus(t)
	b.SetCalibration(Calibration{"shoulder_pan": {ID: 1, HomingOffset: 9000}})

	port.queueStatus(1, 0, []byte{42})
	v, err := b.ReadOne(context.Background(), RegPresentTemperature, "shoulder_pan")
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if v != 42 {
		t.Errorf("temperature = %d, want 42", v)
	}
}

func TestReadStatusError(t *testing.T) {
	b, port := testBus(t)

	port.queueStatus(1, statusDataRange, []byte{0, 0, 0, 0})
	_, err := b.Read(context.Background(), RegPresentPosition)

	var ce *CommError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CommError", err)
	}
	if ce.Port != "/dev/ttyTEST0" {
		t.Errorf("CommError.Port = %q", ce.Port)
	}
	if ce.Op != "Present_Position_shoulder_pan_shoulder_lift_gripper" {
		t.Errorf("CommError.Op = %q", ce.Op)
	}
}

func TestReadTimeout(t *testing.T) {
	b, port := testBus(t)

	// Only two of three motors answer.
	port.queueStatus(1, 0, []byte{0, 0, 0, 0})
	port.queueStatus(2, 0, []byte{0, 0, 0, 0})

	_, err := b.Read(context.Background(), RegPresentPosition)
	var ce *CommError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CommError", err)
	}
	if !errors.Is(err, errTimeout) {
		t.Errorf("err = %v, want wrapped timeout", err)
	}
}

func TestWriteSyncPacket(t *testing.T) {
	b, port := testBus(t)

	err := b.Write(context.Background(), RegGoalPosition, []int{512, 1024, -1})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantParams := []byte{
		116, 0, 4, 0, // Goal_Position addr/size
		1, 0x00, 0x02, 0x00, 0x00, // 512
		2, 0x00, 0x04, 0x00, 0x00, // 1024
		6, 0xFF, 0xFF, 0xFF, 0xFF, // -1 as uint32
	}
	want := buildPacket(broadcastID, instSyncWrite, wantParams)
	if !bytes.Equal(port.wrote.Bytes(), want) {
		t.Errorf("sync write packet = % X, want % X", port.wrote.Bytes(), want)
	}
}

func TestWriteRevertsCalibration(t *testing.T) {
	b, port := testBus(t)
	b.SetCalibration(Calibration{
		"shoulder_pan": {ID: 1, DriveMode: 1, HomingOffset: 100},
	})

	// Apply(10) = 90 under this record, so writing 90 must put 10 on
	// the wire.
	err := b.Write(context.Background(), RegGoalPosition, []int{90}, "shoulder_pan")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantParams := []byte{116, 0, 4, 0, 1, 0x0A, 0x00, 0x00, 0x00}
	want := buildPacket(broadcastID, instSyncWrite, wantParams)
	if !bytes.Equal(port.wrote.Bytes(), want) {
		t.Errorf("sync write packet = % X, want % X", port.wrote.Bytes(), want)
	}
}

func TestWriteValueCountMismatch(t *testing.T) {
	b, _ := testBus(t)
	if err := b.Write(context.Background(), RegTorqueEnable, []int{1}); err == nil {
		t.Error("expected error for value/motor count mismatch")
	}
}

func TestGroupHandleCaching(t *testing.T) {
	b, port := testBus(t)
	ctx := context.Background()

	for range 3 {
		for _, id := range []byte{1, 2, 6} {
			port.queueStatus(id, 0, []byte{0, 0, 0, 0})
		}
		if _, err := b.Read(ctx, RegPresentPosition); err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if len(b.readers) != 1 {
		t.Errorf("reader cache has %d entries, want 1", len(b.readers))
	}

	// A different motor subset gets its own handle.
	port.queueStatus(1, 0, []byte{0, 0, 0, 0})
	if _, err := b.Read(ctx, RegPresentPosition, "shoulder_pan"); err != nil {
		t.Fatalf("Read subset: %v", err)
	}
	if len(b.readers) != 2 {
		t.Errorf("reader cache has %d entries, want 2", len(b.readers))
	}

	for range 2 {
		if err := b.WriteAll(ctx, RegTorqueEnable, TorqueEnabled); err != nil {
			t.Fatalf("WriteAll: %v", err)
		}
	}
	if len(b.writers) != 1 {
		t.Errorf("writer cache has %d entries, want 1", len(b.writers))
	}
}

func TestPing(t *testing.T) {
	b, port := testBus(t)

	// Ping response params: model number (2 bytes) + firmware version.
	port.queueStatus(1, 0, []byte{0xD6, 0x04, 0x2F}) // model 1238
	model, err := b.Ping(context.Background(), 1)
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if model != 1238 {
		t.Errorf("model = %d, want 1238", model)
	}

	wantPkt := buildPacket(1, instPing, nil)
	if !bytes.Equal(port.wrote.Bytes(), wantPkt) {
		t.Errorf("ping packet = % X, want % X", port.wrote.Bytes(), wantPkt)
	}
}

func TestScanSkipsSilentIDs(t *testing.T) {
	b, _ := testBus(t)

	// Only ID 2 answers; 1 and 3 time out.
	pkt := buildPacket(2, instStatus, []byte{0, 0xD6, 0x04, 0x2F})
	b.port = &scriptedPort{responses: map[int][]byte{2: pkt}}

	found, err := b.Scan(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(found) != 1 || found[0].ID != 2 || found[0].Model != 1238 {
		t.Errorf("found = %+v", found)
	}
}

// scriptedPort answers pings for specific IDs and times out otherwise.
type scriptedPort struct {
	responses map[int][]byte
	pending   bytes.Buffer
}

func (s *scriptedPort) Write(p []byte) (int, error) {
	// Instruction packet ID is byte 4.
	if len(p) > 4 {
		if resp, ok := s.responses[int(p[4])]; ok {
			s.pending.Write(resp)
		}
	}
	return len(p), nil
}

func (s *scriptedPort) Read(p []byte) (int, error) {
	if s.pending.Len() == 0 {
		return 0, nil
	}
	return s.pending.Read(p)
}

func (s *scriptedPort) Close() error { return nil }

func TestNewRejectsUnknownModel(t *testing.T) {
	_, err := New(Config{
		Port:   "/dev/ttyTEST0",
		Motors: []Motor{{Name: "a", ID: 1, Model: "not-a-servo"}},
	})
	if err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestContextCanceled(t *testing.T) {
	b, _ := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Read(ctx, RegPresentPosition); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
