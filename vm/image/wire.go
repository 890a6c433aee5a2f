package image

import (
	"fmt"
	"math"

	"github.com/chazu/actorvm/vm"
	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so the same image always produces the
// same bytes.
var cborEncMode cbor.EncMode

// cborDecMode allows deeper nesting than the library default; values may
// nest containers arbitrarily.
var cborDecMode cbor.DecMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{MaxNestedLevels: 256}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// wireImage is the on-disk form of an Image.
type wireImage struct {
	Format  string            `cbor:"1,keyasint"`
	Name    string            `cbor:"2,keyasint,omitempty"`
	Program []wireInstruction `cbor:"3,keyasint"`
	Heap    []wireValue       `cbor:"4,keyasint,omitempty"`
}

type wireInstruction struct {
	Op    uint8  `cbor:"1,keyasint"`
	A     uint8  `cbor:"2,keyasint,omitempty"`
	B     uint8  `cbor:"3,keyasint,omitempty"`
	C     uint8  `cbor:"4,keyasint,omitempty"`
	Imm   int64  `cbor:"5,keyasint,omitempty"`
	Float uint64 `cbor:"6,keyasint,omitempty"` // IEEE bits, keeps NaN payloads
	Text  string `cbor:"7,keyasint,omitempty"`
}

// wireValue is a tagged Value. Which payload field is set depends on Kind.
type wireValue struct {
	Kind  uint8       `cbor:"1,keyasint"`
	Bits  uint64      `cbor:"2,keyasint,omitempty"` // Ref, Int, Float bits, Bool
	Text  string      `cbor:"3,keyasint,omitempty"` // String, Atom
	Elems []wireValue `cbor:"4,keyasint,omitempty"` // List, Tuple
	Keys  []wireValue `cbor:"5,keyasint,omitempty"` // Map keys, parallel to Vals
	Vals  []wireValue `cbor:"6,keyasint,omitempty"`
}

func toWireInstruction(ins vm.Instruction) wireInstruction {
	return wireInstruction{
		Op:    uint8(ins.Op),
		A:     uint8(ins.A),
		B:     uint8(ins.B),
		C:     uint8(ins.C),
		Imm:   ins.Imm,
		Float: math.Float64bits(ins.Float),
		Text:  ins.Text,
	}
}

func fromWireInstruction(w wireInstruction) vm.Instruction {
	return vm.Instruction{
		Op:    vm.Opcode(w.Op),
		A:     vm.Register(w.A),
		B:     vm.Register(w.B),
		C:     vm.Register(w.C),
		Imm:   w.Imm,
		Float: math.Float64frombits(w.Float),
		Text:  w.Text,
	}
}

func toWireValue(v vm.Value) wireValue {
	w := wireValue{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case vm.KindRef:
		w.Bits = v.RefID()
	case vm.KindInt:
		w.Bits = uint64(v.Int())
	case vm.KindFloat:
		w.Bits = v.FloatBits()
	case vm.KindBool:
		if v.Bool() {
			w.Bits = 1
		}
	case vm.KindString, vm.KindAtom:
		w.Text = v.Text()
	case vm.KindList, vm.KindTuple:
		elems := v.Elements()
		w.Elems = make([]wireValue, len(elems))
		for i, e := range elems {
			w.Elems[i] = toWireValue(e)
		}
	case vm.KindMap:
		entries := v.Map().Entries()
		w.Keys = make([]wireValue, len(entries))
		w.Vals = make([]wireValue, len(entries))
		for i, e := range entries {
			w.Keys[i] = toWireValue(e.Key)
			w.Vals[i] = toWireValue(e.Value)
		}
	}
	return w
}

func fromWireValue(w wireValue) (vm.Value, error) {
	switch vm.Kind(w.Kind) {
	case vm.KindRef:
		return vm.FromRef(w.Bits), nil
	case vm.KindInt:
		return vm.FromInt(int64(w.Bits)), nil
	case vm.KindFloat:
		return vm.FromFloat(math.Float64frombits(w.Bits)), nil
	case vm.KindBool:
		return vm.FromBool(w.Bits != 0), nil
	case vm.KindString:
		return vm.FromString(w.Text), nil
	case vm.KindAtom:
		return vm.FromAtom(w.Text), nil
	case vm.KindList, vm.KindTuple:
		elems := make([]vm.Value, len(w.Elems))
		for i, e := range w.Elems {
			v, err := fromWireValue(e)
			if err != nil {
				return vm.Value{}, err
			}
			elems[i] = v
		}
		if vm.Kind(w.Kind) == vm.KindTuple {
			return vm.NewTuple(elems...), nil
		}
		return vm.NewList(elems...), nil
	case vm.KindMap:
		if len(w.Keys) != len(w.Vals) {
			return vm.Value{}, fmt.Errorf("%w: map has %d keys and %d values", ErrCorrupt, len(w.Keys), len(w.Vals))
		}
		m := vm.NewMap()
		for i := range w.Keys {
			k, err := fromWireValue(w.Keys[i])
			if err != nil {
				return vm.Value{}, err
			}
			v, err := fromWireValue(w.Vals[i])
			if err != nil {
				return vm.Value{}, err
			}
			if m.Has(k) {
				return vm.Value{}, fmt.Errorf("%w: duplicate map key %s", ErrCorrupt, k)
			}
			m.Put(k, v)
		}
		return vm.FromMap(m), nil
	default:
		return vm.Value{}, fmt.Errorf("%w: unknown value kind %d", ErrCorrupt, w.Kind)
	}
}

// MarshalValue serializes a single Value to CBOR bytes.
func MarshalValue(v vm.Value) ([]byte, error) {
	return cborEncMode.Marshal(toWireValue(v))
}

// UnmarshalValue deserializes a Value from CBOR bytes.
func UnmarshalValue(data []byte) (vm.Value, error) {
	var w wireValue
	if err := cborDecMode.Unmarshal(data, &w); err != nil {
		return vm.Value{}, fmt.Errorf("image: unmarshal value: %w", err)
	}
	return fromWireValue(w)
}
