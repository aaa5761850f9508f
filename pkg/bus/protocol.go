package bus

import (
	"errors"
	"fmt"
	"io"
)

// Protocol 2.0 instruction bytes.
const (
	instPing      = 0x01
	instRead      = 0x02
	instWrite     = 0x03
	instSyncRead  = 0x82
	instSyncWrite = 0x83
	instStatus    = 0x55

	broadcastID = 0xFE
)

// Status packet error field values (low 7 bits).
const (
	statusResultFail  = 0x01
	statusInstrError  = 0x02
	statusCRCError    = 0x03
	statusDataRange   = 0x04
	statusDataLength  = 0x05
	statusDataLimit   = 0x06
	statusAccessError = 0x07
)

var errTimeout = errors.New("response timeout")

// crcTable is the CRC-16 (poly 0x8005) table the vendor protocol uses,
// generated once at startup.
var crcTable [256]uint16

func init() {
	for i := range crcTable {
		crc := uint16(i) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

func updateCRC(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}

// stuff inserts an extra 0xFD after any FF FF FD run in a parameter block
// so the payload can never alias the packet header.
func stuff(params []byte) []byte {
	out := make([]byte, 0, len(params))
	for _, b := range params {
		if b == 0xFD && len(out) >= 2 && out[len(out)-1] == 0xFF && out[len(out)-2] == 0xFF {
			out = append(out, 0xFD, 0xFD)
			continue
		}
		out = append(out, b)
	}
	return out
}

// unstuff reverses stuff.
func unstuff(params []byte) []byte {
	out := make([]byte, 0, len(params))
	for i := 0; i < len(params); i++ {
		out = append(out, params[i])
		if params[i] == 0xFD && i >= 2 && params[i-1] == 0xFF && params[i-2] == 0xFF &&
			i+1 < len(params) && params[i+1] == 0xFD {
			i++ // skip the stuffing byte
		}
	}
	return out
}

// buildPacket frames an instruction packet:
// FF FF FD 00 | ID | LEN_L LEN_H | INST | PARAMS... | CRC_L CRC_H
// where LEN counts everything after the length field.
func buildPacket(id byte, inst byte, params []byte) []byte {
	body := stuff(params)
	length := len(body) + 3 // inst + params + crc
	pkt := make([]byte, 0, len(body)+10)
	pkt = append(pkt, 0xFF, 0xFF, 0xFD, 0x00, id, byte(length), byte(length>>8), inst)
	pkt = append(pkt, body...)
	crc := updateCRC(0, pkt)
	pkt = append(pkt, byte(crc), byte(crc>>8))
	return pkt
}

// statusPacket is a parsed status (0x55) packet.
type statusPacket struct {
	id     byte
	status byte
	params []byte
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	n, err := r.Read(buf[:])
	if n == 1 {
		return buf[0], nil
	}
	if err != nil {
		return 0, err
	}
	// Serial reads return zero bytes on timeout.
	return 0, errTimeout
}

// readStatus scans the stream for the next status packet, verifies its CRC
// and returns it with stuffing removed. The status error field is returned
// in the packet; transport-level problems are returned as errors.
func readStatus(r io.Reader) (*statusPacket, error) {
	// Hunt for the FF FF FD 00 header. Bounded so a noisy line cannot
	// spin forever.
	var window [4]byte
	matched := 0
	for scanned := 0; ; scanned++ {
		if scanned > 512 {
			return nil, fmt.Errorf("no packet header found")
		}
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		window[0], window[1], window[2] = window[1], window[2], window[3]
		window[3] = b
		matched++
		if matched >= 4 && window == [4]byte{0xFF, 0xFF, 0xFD, 0x00} {
			break
		}
	}

	var hdr [3]byte // id, len_l, len_h
	for i := range hdr {
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		hdr[i] = b
	}
	id := hdr[0]
	length := int(hdr[1]) | int(hdr[2])<<8
	if length < 4 || length > 1024 {
		return nil, fmt.Errorf("bad packet length %d", length)
	}

	body := make([]byte, length)
	for i := range body {
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		body[i] = b
	}

	crc := updateCRC(0, []byte{0xFF, 0xFF, 0xFD, 0x00, id, hdr[1], hdr[2]})
	crc = updateCRC(crc, body[:length-2])
	if got := uint16(body[length-2]) | uint16(body[length-1])<<8; got != crc {
		return nil, fmt.Errorf("crc mismatch: got %#04x, want %#04x", got, crc)
	}

	if body[0] != instStatus {
		return nil, fmt.Errorf("unexpected instruction %#02x in response", body[0])
	}

	// Destuff the error byte and parameters together so a FF FF FD run
	// spanning the boundary is still undone.
	fields := unstuff(body[1 : length-2])
	return &statusPacket{
		id:     id,
		status: fields[0],
		params: fields[1:],
	}, nil
}

// statusText describes a status packet error field.
func statusText(code byte) string {
	switch code &^ 0x80 { // high bit is the hardware alert flag
	case statusResultFail:
		return "result fail"
	case statusInstrError:
		return "instruction error"
	case statusCRCError:
		return "crc error"
	case statusDataRange:
		return "data range error"
	case statusDataLength:
		return "data length error"
	case statusDataLimit:
		return "data limit error"
	case statusAccessError:
		return "access error"
	default:
		return fmt.Sprintf("status %#02x", code)
	}
}

// encodeValue encodes a register value little-endian, low word first.
// Widths 1, 2 and 4 are the only ones the control table uses.
func encodeValue(v, size int) ([]byte, error) {
	switch size {
	case 1:
		return []byte{byte(v)}, nil
	case 2:
		return []byte{byte(v), byte(v >> 8)}, nil
	case 4:
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}, nil
	default:
		return nil, fmt.Errorf("unsupported register width %d", size)
	}
}

// decodeValue decodes a little-endian register value.
func decodeValue(data []byte) int {
	v := 0
	for i, b := range data {
		v |= int(b) << (8 * i)
	}
	return v
}
