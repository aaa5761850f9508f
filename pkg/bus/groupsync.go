package bus

import "strings"

// groupKey identifies a cached sync handle by register and the ordered set
// of motors taking part in the transaction.
func groupKey(reg Register, names []string) string {
	return string(reg) + "_" + strings.Join(names, "_")
}

// groupReader is a reusable sync-read handle. The instruction packet only
// depends on the register window and the participating IDs, so it is built
// once and retransmitted on every call.
type groupReader struct {
	addr   int
	size   int
	ids    []int
	packet []byte
}

func newGroupReader(addr, size int, ids []int) *groupReader {
	params := make([]byte, 0, 4+len(ids))
	params = append(params, byte(addr), byte(addr>>8), byte(size), byte(size>>8))
	for _, id := range ids {
		params = append(params, byte(id))
	}
	return &groupReader{
		addr:   addr,
		size:   size,
		ids:    ids,
		packet: buildPacket(broadcastID, instSyncRead, params),
	}
}

// groupWriter is a reusable sync-write handle. Per-motor payloads are
// updated in place between transmissions.
type groupWriter struct {
	addr int
	size int
	ids  []int
	data map[int][]byte
}

func newGroupWriter(addr, size int, ids []int) *groupWriter {
	return &groupWriter{
		addr: addr,
		size: size,
		ids:  ids,
		data: make(map[int][]byte, len(ids)),
	}
}

func (w *groupWriter) setParam(id int, data []byte) {
	w.data[id] = data
}

func (w *groupWriter) packet() []byte {
	params := make([]byte, 0, 4+len(w.ids)*(1+w.size))
	params = append(params, byte(w.addr), byte(w.addr>>8), byte(w.size), byte(w.size>>8))
	for _, id := range w.ids {
		params = append(params, byte(id))
		params = append(params, w.data[id]...)
	}
	return buildPacket(broadcastID, instSyncWrite, params)
}
