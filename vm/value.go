package vm

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant of the Value union is populated.
type Kind uint8

const (
	KindRef Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindAtom
	KindList
	KindTuple
	KindMap
)

var kindNames = [...]string{
	KindRef:    "Ref",
	KindInt:    "Int",
	KindFloat:  "Float",
	KindBool:   "Bool",
	KindString: "String",
	KindAtom:   "Atom",
	KindList:   "List",
	KindTuple:  "Tuple",
	KindMap:    "Map",
}

// String returns the variant name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is the tagged datum held by registers, stack slots, heap cells and
// mailbox entries.
//
// The zero Value is Ref(0), which is also the default contents of every
// freshly allocated slot. Values are treated as immutable by callers outside
// this package; instructions that mutate a container work on a clone and
// store the clone back.
//
// Layout:
//   - Ref, Int, Bool: payload in bits
//   - Float: IEEE 754 bit pattern in bits
//   - String, Atom: payload in str
//   - List, Tuple: payload in elems
//   - Map: payload in m
type Value struct {
	kind  Kind
	bits  uint64
	str   string
	elems []Value
	m     *Map
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromRef returns a Ref handle.
func FromRef(ref uint64) Value {
	return Value{kind: KindRef, bits: ref}
}

// FromInt returns an Int value.
func FromInt(i int64) Value {
	return Value{kind: KindInt, bits: uint64(i)}
}

// FromFloat returns a Float value. The exact bit pattern is preserved.
func FromFloat(f float64) Value {
	return Value{kind: KindFloat, bits: math.Float64bits(f)}
}

// FromBool returns a Bool value.
func FromBool(b bool) Value {
	if b {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

// FromString returns a String value.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromAtom returns an Atom value. Atoms compare by content but never equal a
// String with the same text.
func FromAtom(name string) Value {
	return Value{kind: KindAtom, str: name}
}

// NewList returns a List holding copies of elems.
func NewList(elems ...Value) Value {
	return Value{kind: KindList, elems: cloneElems(elems)}
}

// NewTuple returns a Tuple holding copies of elems.
func NewTuple(elems ...Value) Value {
	return Value{kind: KindTuple, elems: cloneElems(elems)}
}

// FromMap returns a Map value holding a copy of m. A nil m yields an empty map.
func FromMap(m *Map) Value {
	if m == nil {
		return Value{kind: KindMap, m: NewMap()}
	}
	return Value{kind: KindMap, m: m.Clone()}
}

// MaxContainerLen bounds the length operand of MakeList and MakeTuple.
const MaxContainerLen = 1 << 16

// filled returns a container of kind k with n slots, each Ref(0).
func filled(k Kind, n int) Value {
	elems := make([]Value, n)
	for i := range elems {
		elems[i] = FromRef(0)
	}
	return Value{kind: k, elems: elems}
}

// ---------------------------------------------------------------------------
// Type checking and accessors
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsRef() bool    { return v.kind == KindRef }
func (v Value) IsInt() bool    { return v.kind == KindInt }
func (v Value) IsFloat() bool  { return v.kind == KindFloat }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsAtom() bool   { return v.kind == KindAtom }
func (v Value) IsList() bool   { return v.kind == KindList }
func (v Value) IsTuple() bool  { return v.kind == KindTuple }
func (v Value) IsMap() bool    { return v.kind == KindMap }

// RefID returns the handle of a Ref. The result is meaningless for other kinds.
func (v Value) RefID() uint64 { return v.bits }

// Int returns the payload of an Int.
func (v Value) Int() int64 { return int64(v.bits) }

// Float returns the payload of a Float.
func (v Value) Float() float64 { return math.Float64frombits(v.bits) }

// FloatBits returns the raw IEEE 754 pattern of a Float.
func (v Value) FloatBits() uint64 { return v.bits }

// Bool returns the payload of a Bool.
func (v Value) Bool() bool { return v.bits != 0 }

// Text returns the payload of a String or Atom.
func (v Value) Text() string { return v.str }

// Len returns the number of elements of a List, Tuple or Map, the byte
// length of a String or Atom, and 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindList, KindTuple:
		return len(v.elems)
	case KindMap:
		return v.m.Len()
	case KindString, KindAtom:
		return len(v.str)
	default:
		return 0
	}
}

// At returns a copy of element i of a List or Tuple.
func (v Value) At(i int) (Value, bool) {
	if (v.kind != KindList && v.kind != KindTuple) || i < 0 || i >= len(v.elems) {
		return Value{}, false
	}
	return v.elems[i].Clone(), true
}

// Elements returns a deep copy of the elements of a List or Tuple.
func (v Value) Elements() []Value {
	if v.kind != KindList && v.kind != KindTuple {
		return nil
	}
	return cloneElems(v.elems)
}

// Map returns a deep copy of the payload of a Map, or nil for other kinds.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m.Clone()
}

// ---------------------------------------------------------------------------
// Clone / Equal / Hash
// ---------------------------------------------------------------------------

// Clone returns a structurally equal Value that shares no container storage
// with v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList, KindTuple:
		return Value{kind: v.kind, elems: cloneElems(v.elems)}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	default:
		return v
	}
}

func cloneElems(elems []Value) []Value {
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = e.Clone()
	}
	return out
}

// Equal reports structural equality. Floats compare by bit pattern, so two
// NaNs are equal only when bit-identical and 0.0 differs from -0.0. Maps are
// equal when they hold equal values under equal keys, regardless of
// insertion order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindRef, KindInt, KindFloat, KindBool:
		return v.bits == o.bits
	case KindString, KindAtom:
		return v.str == o.str
	case KindList, KindTuple:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.m.Equal(o.m)
	default:
		return false
	}
}

// Hash returns a structural hash consistent with Equal.
func (v Value) Hash() uint64 {
	h := newHasher()
	h.value(v)
	return h.sum()
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// String renders v for diagnostics, e.g. Int(42) or List[Int(1), Ref(0)].
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case KindRef:
		sb.WriteString("Ref(")
		sb.WriteString(strconv.FormatUint(v.bits, 10))
		sb.WriteByte(')')
	case KindInt:
		sb.WriteString("Int(")
		sb.WriteString(strconv.FormatInt(v.Int(), 10))
		sb.WriteByte(')')
	case KindFloat:
		sb.WriteString("Float(")
		sb.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))
		sb.WriteByte(')')
	case KindBool:
		sb.WriteString("Bool(")
		sb.WriteString(strconv.FormatBool(v.Bool()))
		sb.WriteByte(')')
	case KindString:
		sb.WriteString("String(")
		sb.WriteString(strconv.Quote(v.str))
		sb.WriteByte(')')
	case KindAtom:
		sb.WriteString("Atom(")
		sb.WriteString(v.str)
		sb.WriteByte(')')
	case KindList, KindTuple:
		open, close := "List[", "]"
		if v.kind == KindTuple {
			open, close = "Tuple(", ")"
		}
		sb.WriteString(open)
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteString(close)
	case KindMap:
		sb.WriteString("Map{")
		for i, e := range v.m.list() {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.Key.format(sb)
			sb.WriteString(": ")
			e.Value.format(sb)
		}
		sb.WriteByte('}')
	}
}
