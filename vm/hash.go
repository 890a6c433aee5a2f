package vm

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// hasher feeds the structural encoding of a Value into xxhash.
type hasher struct {
	d   *xxhash.Digest
	buf [9]byte
}

func newHasher() *hasher {
	return &hasher{d: xxhash.New()}
}

func (h *hasher) word(k Kind, x uint64) {
	h.buf[0] = byte(k)
	binary.LittleEndian.PutUint64(h.buf[1:], x)
	h.d.Write(h.buf[:])
}

func (h *hasher) value(v Value) {
	switch v.kind {
	case KindRef, KindInt, KindFloat, KindBool:
		h.word(v.kind, v.bits)
	case KindString, KindAtom:
		h.word(v.kind, uint64(len(v.str)))
		h.d.WriteString(v.str)
	case KindList, KindTuple:
		h.word(v.kind, uint64(len(v.elems)))
		for _, e := range v.elems {
			h.value(e)
		}
	case KindMap:
		// Entry hashes are summed so that the result does not depend on
		// insertion order, matching Map.Equal.
		var acc uint64
		for _, e := range v.m.list() {
			eh := newHasher()
			eh.value(e.Key)
			eh.value(e.Value)
			acc += eh.sum()
		}
		h.word(KindMap, uint64(v.m.Len()))
		h.word(KindMap, acc)
	}
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}
