package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaudRate = 1_000_000
	DefaultTimeout  = 100 * time.Millisecond
)

// ErrNotConnected is returned when operating on a bus before Connect or
// after Close.
var ErrNotConnected = errors.New("bus is not connected")

// CommError is a communication failure on a bus transaction. It identifies
// the port and the operation that failed.
type CommError struct {
	Port string
	Op   string
	Err  error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error on port %s (%s): %v", e.Port, e.Op, e.Err)
}

func (e *CommError) Unwrap() error { return e.Err }

// Motor describes one servo on the bus.
type Motor struct {
	Name  string
	ID    int
	Model string
}

// Config configures a motor bus.
type Config struct {
	Port     string
	BaudRate int           // default 1 Mbaud
	Timeout  time.Duration // per-read timeout, default 100ms
	Motors   []Motor
}

// Bus drives a chain of Dynamixel servos over one serial port.
//
// All I/O is synchronous and single-threaded: one transaction per call, no
// internal locking. Group read/write handles are cached per (register,
// motor set) and reused across calls.
type Bus struct {
	cfg    Config
	port   io.ReadWriteCloser
	byName map[string]Motor
	names  []string

	readers map[string]*groupReader
	writers map[string]*groupWriter

	calibration Calibration
}

// New builds a bus from its configuration without opening the port.
func New(cfg Config) (*Bus, error) {
	if cfg.Port == "" {
		return nil, errors.New("bus: port is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	byName := make(map[string]Motor, len(cfg.Motors))
	names := make([]string, 0, len(cfg.Motors))
	for _, m := range cfg.Motors {
		if _, ok := modelTables[m.Model]; !ok {
			return nil, fmt.Errorf("bus: unknown motor model %q for %q", m.Model, m.Name)
		}
		if _, dup := byName[m.Name]; dup {
			return nil, fmt.Errorf("bus: duplicate motor name %q", m.Name)
		}
		byName[m.Name] = m
		names = append(names, m.Name)
	}

	return &Bus{
		cfg:     cfg,
		byName:  byName,
		names:   names,
		readers: make(map[string]*groupReader),
		writers: make(map[string]*groupWriter),
	}, nil
}

// Connect opens the serial port.
func (b *Bus) Connect() error {
	if b.port != nil {
		return nil
	}
	port, err := serial.Open(b.cfg.Port, &serial.Mode{BaudRate: b.cfg.BaudRate})
	if err != nil {
		return fmt.Errorf("open port %s: %w", b.cfg.Port, err)
	}
	if err := port.SetReadTimeout(b.cfg.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", b.cfg.Port, err)
	}
	b.port = port
	return nil
}

// Close closes the serial port. Cached group handles survive a reconnect.
func (b *Bus) Close() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}

// Connected reports whether the port is open.
func (b *Bus) Connected() bool { return b.port != nil }

// Port returns the serial device path.
func (b *Bus) Port() string { return b.cfg.Port }

// MotorNames returns all motor names in configuration order.
func (b *Bus) MotorNames() []string {
	names := make([]string, len(b.names))
	copy(names, b.names)
	return names
}

// SetCalibration installs the calibration applied to position registers.
// A nil calibration disables the transform.
func (b *Bus) SetCalibration(cal Calibration) {
	b.calibration = cal
}

// Calibration returns the installed calibration, or nil.
func (b *Bus) Calibration() Calibration { return b.calibration }

// regFor resolves a register against a motor's control table.
func (b *Bus) regFor(name string, reg Register) (regInfo, error) {
	m, ok := b.byName[name]
	if !ok {
		return regInfo{}, fmt.Errorf("unknown motor %q", name)
	}
	info, ok := modelTables[m.Model][reg]
	if !ok {
		return regInfo{}, fmt.Errorf("register %s not in control table of %s", reg, m.Model)
	}
	return info, nil
}

// resolve expands an empty name list to all motors and maps names to IDs.
func (b *Bus) resolve(names []string) ([]string, []int, error) {
	if len(names) == 0 {
		names = b.names
	}
	ids := make([]int, len(names))
	for i, name := range names {
		m, ok := b.byName[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown motor %q", name)
		}
		ids[i] = m.ID
	}
	return names, ids, nil
}

// Read issues one batched sync-read transaction for the given register and
// returns one value per motor, in motor order. With no names it reads all
// motors. Position values are sign-converted and calibrated.
func (b *Bus) Read(ctx context.Context, reg Register, names ...string) ([]int, error) {
	if b.port == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, ids, err := b.resolve(names)
	if err != nil {
		return nil, err
	}
	info, err := b.regFor(names[0], reg)
	if err != nil {
		return nil, err
	}

	key := groupKey(reg, names)
	reader, ok := b.readers[key]
	if !ok {
		reader = newGroupReader(info.addr, info.size, ids)
		b.readers[key] = reader
	}

	if _, err := b.port.Write(reader.packet); err != nil {
		return nil, &CommError{Port: b.cfg.Port, Op: key, Err: err}
	}

	values := make([]int, len(ids))
	byID := make(map[int]int, len(ids))
	for range ids {
		st, err := readStatus(b.port)
		if err != nil {
			return nil, &CommError{Port: b.cfg.Port, Op: key, Err: err}
		}
		if st.status != 0 {
			return nil, &CommError{Port: b.cfg.Port, Op: key,
				Err: fmt.Errorf("motor %d: %s", st.id, statusText(st.status))}
		}
		if len(st.params) != info.size {
			return nil, &CommError{Port: b.cfg.Port, Op: key,
				Err: fmt.Errorf("motor %d: got %d data bytes, want %d", st.id, len(st.params), info.size)}
		}
		byID[int(st.id)] = decodeValue(st.params)
	}
	for i, id := range ids {
		v, ok := byID[id]
		if !ok {
			return nil, &CommError{Port: b.cfg.Port, Op: key,
				Err: fmt.Errorf("no response from motor %d", id)}
		}
		values[i] = v
	}

	if signedRegisters[reg] {
		for i := range values {
			values[i] = uint32ToInt32(values[i])
		}
	}
	if calibratedRegisters[reg] && b.calibration != nil {
		for i, name := range names {
			if mc, ok := b.calibration[name]; ok {
				values[i] = mc.Apply(values[i])
			}
		}
	}
	return values, nil
}

// ReadOne reads a register from a single motor.
func (b *Bus) ReadOne(ctx context.Context, reg Register, name string) (int, error) {
	values, err := b.Read(ctx, reg, name)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// Write issues one batched sync-write transaction setting the register of
// each named motor to the corresponding value. With no names it writes all
// motors; values must match the motor count. Position values are
// calibration-reverted before encoding. Sync writes are not acknowledged
// by the servos, so only transport failures are reported.
func (b *Bus) Write(ctx context.Context, reg Register, values []int, names ...string) error {
	if b.port == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	names, ids, err := b.resolve(names)
	if err != nil {
		return err
	}
	if len(values) != len(names) {
		return fmt.Errorf("got %d values for %d motors", len(values), len(names))
	}
	info, err := b.regFor(names[0], reg)
	if err != nil {
		return err
	}

	if calibratedRegisters[reg] && b.calibration != nil {
		reverted := make([]int, len(values))
		copy(reverted, values)
		for i, name := range names {
			if mc, ok := b.calibration[name]; ok {
				reverted[i] = mc.Revert(reverted[i])
			}
		}
		values = reverted
	}

	key := groupKey(reg, names)
	writer, ok := b.writers[key]
	if !ok {
		writer = newGroupWriter(info.addr, info.size, ids)
		b.writers[key] = writer
	}
	for i, id := range ids {
		data, err := encodeValue(values[i], info.size)
		if err != nil {
			return err
		}
		writer.setParam(id, data)
	}

	if _, err := b.port.Write(writer.packet()); err != nil {
		return &CommError{Port: b.cfg.Port, Op: key, Err: err}
	}
	return nil
}

// WriteOne writes a register on a single motor.
func (b *Bus) WriteOne(ctx context.Context, reg Register, value int, name string) error {
	return b.Write(ctx, reg, []int{value}, name)
}

// WriteAll writes the same value to a register on every motor.
func (b *Bus) WriteAll(ctx context.Context, reg Register, value int) error {
	values := make([]int, len(b.names))
	for i := range values {
		values[i] = value
	}
	return b.Write(ctx, reg, values)
}

// Ping checks a single ID and returns its reported model number.
func (b *Bus) Ping(ctx context.Context, id int) (int, error) {
	if b.port == nil {
		return 0, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pkt := buildPacket(byte(id), instPing, nil)
	if _, err := b.port.Write(pkt); err != nil {
		return 0, &CommError{Port: b.cfg.Port, Op: "ping", Err: err}
	}
	st, err := readStatus(b.port)
	if err != nil {
		return 0, &CommError{Port: b.cfg.Port, Op: "ping", Err: err}
	}
	if st.status != 0 {
		return 0, &CommError{Port: b.cfg.Port, Op: "ping",
			Err: fmt.Errorf("motor %d: %s", st.id, statusText(st.status))}
	}
	if len(st.params) < 2 {
		return 0, &CommError{Port: b.cfg.Port, Op: "ping", Err: errors.New("short ping response")}
	}
	return decodeValue(st.params[:2]), nil
}

// FoundMotor is one ping response from Scan.
type FoundMotor struct {
	ID    int
	Model int
}

// Scan pings every ID in [lo, hi] and returns the ones that answered.
func (b *Bus) Scan(ctx context.Context, lo, hi int) ([]FoundMotor, error) {
	if b.port == nil {
		return nil, ErrNotConnected
	}
	var found []FoundMotor
	for id := lo; id <= hi; id++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		model, err := b.Ping(ctx, id)
		if err != nil {
			var ce *CommError
			if errors.As(err, &ce) && errors.Is(ce.Err, errTimeout) {
				continue // nobody home at this ID
			}
			return found, err
		}
		found = append(found, FoundMotor{ID: id, Model: model})
	}
	return found, nil
}
