package bus

import (
	"bytes"
	"testing"
)

func TestBuildPacket_Ping(t *testing.T) {
	// Reference packet from the vendor protocol documentation:
	// ping to ID 1.
	got := buildPacket(1, instPing, nil)
	want := []byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x03, 0x00, 0x01, 0x19, 0x4E}
	if !bytes.Equal(got, want) {
		t.Errorf("ping packet = % X, want % X", got, want)
	}
}

func TestStuffRoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0x01, 0x02, 0x03},
		{0xFF, 0xFF, 0xFD},
		{0xFF, 0xFF, 0xFD, 0x00, 0x01},
		{0xFF, 0xFF, 0xFD, 0xFD},
		{0x00, 0xFF, 0xFF, 0xFD, 0xFF, 0xFF, 0xFD},
		{0xFF, 0xFF, 0xFF, 0xFD},
	}
	for _, in := range tests {
		stuffed := stuff(in)
		back := unstuff(stuffed)
		if !bytes.Equal(back, in) {
			t.Errorf("unstuff(stuff(% X)) = % X", in, back)
		}
	}
}

func TestStuffInsertsByte(t *testing.T) {
	got := stuff([]byte{0xFF, 0xFF, 0xFD})
	want := []byte{0xFF, 0xFF, 0xFD, 0xFD}
	if !bytes.Equal(got, want) {
		t.Errorf("stuff = % X, want % X", got, want)
	}
}

func TestReadStatusRoundTrip(t *testing.T) {
	tests := []struct {
		id     byte
		status byte
		params []byte
	}{
		{1, 0, []byte{0xA6, 0x00, 0x00, 0x00}},
		{6, 0, nil},
		{2, statusDataRange, nil},
		{3, 0, []byte{0xFF, 0xFF, 0xFD, 0x01}}, // needs stuffing
	}
	for _, tt := range tests {
		raw := buildPacket(tt.id, instStatus, append([]byte{tt.status}, tt.params...))
		st, err := readStatus(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("readStatus(id=%d): %v", tt.id, err)
		}
		if st.id != tt.id {
			t.Errorf("id = %d, want %d", st.id, tt.id)
		}
		if st.status != tt.status {
			t.Errorf("status = %#x, want %#x", st.status, tt.status)
		}
		if !bytes.Equal(st.params, tt.params) {
			t.Errorf("params = % X, want % X", st.params, tt.params)
		}
	}
}

func TestReadStatusSkipsLineNoise(t *testing.T) {
	pkt := buildPacket(4, instStatus, []byte{0, 0x2A})
	raw := append([]byte{0x00, 0x12, 0xFF, 0x07}, pkt...)
	st, err := readStatus(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("readStatus: %v", err)
	}
	if st.id != 4 || len(st.params) != 1 || st.params[0] != 0x2A {
		t.Errorf("got id=%d params=% X", st.id, st.params)
	}
}

func TestReadStatusRejectsBadCRC(t *testing.T) {
	pkt := buildPacket(1, instStatus, []byte{0, 0x01})
	pkt[len(pkt)-1] ^= 0xFF
	if _, err := readStatus(bytes.NewReader(pkt)); err == nil {
		t.Error("expected CRC error, got nil")
	}
}

func TestEncodeDecodeValue(t *testing.T) {
	tests := []struct {
		value int
		size  int
		want  []byte
	}{
		{1, 1, []byte{0x01}},
		{0x1234, 2, []byte{0x34, 0x12}},
		{512, 4, []byte{0x00, 0x02, 0x00, 0x00}},
		{0xAABBCCDD, 4, []byte{0xDD, 0xCC, 0xBB, 0xAA}},
	}
	for _, tt := range tests {
		got, err := encodeValue(tt.value, tt.size)
		if err != nil {
			t.Fatalf("encodeValue(%d, %d): %v", tt.value, tt.size, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("encodeValue(%d, %d) = % X, want % X", tt.value, tt.size, got, tt.want)
		}
		if back := decodeValue(got); back != tt.value {
			t.Errorf("decodeValue(% X) = %d, want %d", got, back, tt.value)
		}
	}

	if _, err := encodeValue(1, 3); err == nil {
		t.Error("expected error for width 3")
	}
}

func TestEncodeNegativeValue(t *testing.T) {
	// Negative positions are transmitted as their unsigned 32-bit
	// representation.
	got, err := encodeValue(-1, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("encodeValue(-1, 4) = % X, want % X", got, want)
	}
	if v := uint32ToInt32(decodeValue(got)); v != -1 {
		t.Errorf("round trip = %d, want -1", v)
	}
}

func TestWidth2Modulo(t *testing.T) {
	// A value written with width 2 reads back modulo 2^16.
	data, err := encodeValue(0x12345, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := decodeValue(data); got != 0x2345 {
		t.Errorf("decode = %#x, want %#x", got, 0x2345)
	}
}
