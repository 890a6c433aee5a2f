package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies an instruction.
type Opcode byte

// Misc
const (
	OpNop  Opcode = 0x00 // no operation
	OpHalt Opcode = 0x01 // stop the actor
)

// Literal loads
const (
	OpLoadInt    Opcode = 0x10 // reg <- Int(imm)
	OpLoadFloat  Opcode = 0x11 // reg <- Float(float)
	OpLoadBool   Opcode = 0x12 // reg <- Bool(imm != 0)
	OpLoadRef    Opcode = 0x13 // reg <- Ref(imm)
	OpLoadString Opcode = 0x14 // reg <- String(text)
	OpLoadAtom   Opcode = 0x15 // reg <- Atom(text)
	OpLoadSelf   Opcode = 0x16 // reg <- Ref(own actor)
)

// Container construction and access
const (
	OpMakeList   Opcode = 0x20 // reg <- List of imm Ref(0) slots
	OpMakeTuple  Opcode = 0x21 // reg <- Tuple of imm Ref(0) slots
	OpMakeMap    Opcode = 0x22 // reg <- empty Map
	OpSetIndexed Opcode = 0x23 // a[b] <- c (List only)
	OpGetIndexed Opcode = 0x24 // c <- a[b] (List or Tuple)
	OpMapPut     Opcode = 0x25 // a[b] <- c (Map)
	OpMapGet     Opcode = 0x26 // c <- a[b], ZF <- found (Map)
	OpLen        Opcode = 0x27 // b <- Int(len(a))
)

// Registers, heap and stack
const (
	OpMove      Opcode = 0x30 // b <- a
	OpStoreHeap Opcode = 0x31 // heap[imm] <- reg
	OpLoadHeap  Opcode = 0x32 // reg <- heap[imm]
	OpPush      Opcode = 0x33 // push reg, reg <- Ref(0)
	OpPop       Opcode = 0x34 // reg <- pop
)

// Arithmetic: c <- a op b
const (
	OpAdd Opcode = 0x40
	OpSub Opcode = 0x41
	OpMul Opcode = 0x42
	OpDiv Opcode = 0x43
	OpMod Opcode = 0x44
)

// Comparison: ZF <- a op b
const (
	OpEq  Opcode = 0x50
	OpNe  Opcode = 0x51
	OpGt  Opcode = 0x52
	OpLt  Opcode = 0x53
	OpGte Opcode = 0x54
	OpLte Opcode = 0x55
)

// Control flow
const (
	OpJump       Opcode = 0x60 // PC <- imm
	OpJumpIfTrue Opcode = 0x61 // PC <- imm if ZF is Bool(true)
)

// Messaging
const (
	OpSend Opcode = 0x70 // post copy of b to the actor named by a
	OpRecv Opcode = 0x71 // reg <- oldest message, suspend while empty
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// Operand describes the immediate operand carried by an instruction.
type Operand uint8

const (
	OperandNone   Operand = iota
	OperandInt            // Imm holds an integer literal
	OperandFloat          // Float holds the literal
	OperandBool           // Imm != 0
	OperandRef            // Imm holds a ref, reinterpreted as uint64
	OperandText           // Text holds the literal
	OperandLength         // Imm holds a container length, 0..MaxContainerLen
	OperandHeap           // Imm holds a heap address, >= 0
	OperandTarget         // Imm holds a program address
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name      string  // mnemonic
	Registers int     // number of register operands (A, B, C in order)
	Operand   Operand // kind of immediate operand
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:  {"Nop", 0, OperandNone},
	OpHalt: {"Halt", 0, OperandNone},

	OpLoadInt:    {"LoadInt", 1, OperandInt},
	OpLoadFloat:  {"LoadFloat", 1, OperandFloat},
	OpLoadBool:   {"LoadBool", 1, OperandBool},
	OpLoadRef:    {"LoadRef", 1, OperandRef},
	OpLoadString: {"LoadString", 1, OperandText},
	OpLoadAtom:   {"LoadAtom", 1, OperandText},
	OpLoadSelf:   {"LoadSelf", 1, OperandNone},

	OpMakeList:   {"MakeList", 1, OperandLength},
	OpMakeTuple:  {"MakeTuple", 1, OperandLength},
	OpMakeMap:    {"MakeMap", 1, OperandNone},
	OpSetIndexed: {"SetIndexed", 3, OperandNone},
	OpGetIndexed: {"GetIndexed", 3, OperandNone},
	OpMapPut:     {"MapPut", 3, OperandNone},
	OpMapGet:     {"MapGet", 3, OperandNone},
	OpLen:        {"Len", 2, OperandNone},

	OpMove:      {"Move", 2, OperandNone},
	OpStoreHeap: {"StoreHeap", 1, OperandHeap},
	OpLoadHeap:  {"LoadHeap", 1, OperandHeap},
	OpPush:      {"Push", 1, OperandNone},
	OpPop:       {"Pop", 1, OperandNone},

	OpAdd: {"Add", 3, OperandNone},
	OpSub: {"Sub", 3, OperandNone},
	OpMul: {"Mul", 3, OperandNone},
	OpDiv: {"Div", 3, OperandNone},
	OpMod: {"Mod", 3, OperandNone},

	OpEq:  {"Eq", 2, OperandNone},
	OpNe:  {"Ne", 2, OperandNone},
	OpGt:  {"Gt", 2, OperandNone},
	OpLt:  {"Lt", 2, OperandNone},
	OpGte: {"Gte", 2, OperandNone},
	OpLte: {"Lte", 2, OperandNone},

	OpJump:       {"Jump", 0, OperandTarget},
	OpJumpIfTrue: {"JumpIfTrue", 0, OperandTarget},

	OpSend: {"Send", 2, OperandNone},
	OpRecv: {"Recv", 1, OperandNone},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN_%02X", byte(op))
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is one decoded instruction. Which fields are meaningful is
// determined by the opcode's OpcodeInfo: the first Registers of A, B, C are
// register operands and Operand says where the immediate lives.
type Instruction struct {
	Op    Opcode
	A     Register
	B     Register
	C     Register
	Imm   int64
	Float float64
	Text  string
}

// Program is an immutable, ordered sequence of instructions.
type Program []Instruction

func LoadInt(r Register, v int64) Instruction {
	return Instruction{Op: OpLoadInt, A: r, Imm: v}
}

func LoadFloat(r Register, v float64) Instruction {
	return Instruction{Op: OpLoadFloat, A: r, Float: v}
}

func LoadBool(r Register, v bool) Instruction {
	ins := Instruction{Op: OpLoadBool, A: r}
	if v {
		ins.Imm = 1
	}
	return ins
}

func LoadRef(r Register, ref uint64) Instruction {
	return Instruction{Op: OpLoadRef, A: r, Imm: int64(ref)}
}

func LoadString(r Register, s string) Instruction {
	return Instruction{Op: OpLoadString, A: r, Text: s}
}

func LoadAtom(r Register, name string) Instruction {
	return Instruction{Op: OpLoadAtom, A: r, Text: name}
}

// LoadSelf loads a Ref naming the executing actor, so it can be sent to
// others as a reply address.
func LoadSelf(r Register) Instruction {
	return Instruction{Op: OpLoadSelf, A: r}
}

func MakeList(r Register, n int) Instruction {
	return Instruction{Op: OpMakeList, A: r, Imm: int64(n)}
}

func MakeTuple(r Register, n int) Instruction {
	return Instruction{Op: OpMakeTuple, A: r, Imm: int64(n)}
}

func MakeMap(r Register) Instruction {
	return Instruction{Op: OpMakeMap, A: r}
}

func SetIndexed(container, index, value Register) Instruction {
	return Instruction{Op: OpSetIndexed, A: container, B: index, C: value}
}

func GetIndexed(container, index, dest Register) Instruction {
	return Instruction{Op: OpGetIndexed, A: container, B: index, C: dest}
}

func MapPut(m, key, value Register) Instruction {
	return Instruction{Op: OpMapPut, A: m, B: key, C: value}
}

func MapGet(m, key, dest Register) Instruction {
	return Instruction{Op: OpMapGet, A: m, B: key, C: dest}
}

func Len(container, dest Register) Instruction {
	return Instruction{Op: OpLen, A: container, B: dest}
}

func Move(src, dest Register) Instruction {
	return Instruction{Op: OpMove, A: src, B: dest}
}

func StoreHeap(r Register, addr int) Instruction {
	return Instruction{Op: OpStoreHeap, A: r, Imm: int64(addr)}
}

func LoadHeap(addr int, r Register) Instruction {
	return Instruction{Op: OpLoadHeap, A: r, Imm: int64(addr)}
}

func Push(r Register) Instruction { return Instruction{Op: OpPush, A: r} }
func Pop(r Register) Instruction  { return Instruction{Op: OpPop, A: r} }

func Add(a, b, dest Register) Instruction { return threeReg(OpAdd, a, b, dest) }
func Sub(a, b, dest Register) Instruction { return threeReg(OpSub, a, b, dest) }
func Mul(a, b, dest Register) Instruction { return threeReg(OpMul, a, b, dest) }
func Div(a, b, dest Register) Instruction { return threeReg(OpDiv, a, b, dest) }
func Mod(a, b, dest Register) Instruction { return threeReg(OpMod, a, b, dest) }

func Eq(a, b Register) Instruction  { return Instruction{Op: OpEq, A: a, B: b} }
func Ne(a, b Register) Instruction  { return Instruction{Op: OpNe, A: a, B: b} }
func Gt(a, b Register) Instruction  { return Instruction{Op: OpGt, A: a, B: b} }
func Lt(a, b Register) Instruction  { return Instruction{Op: OpLt, A: a, B: b} }
func Gte(a, b Register) Instruction { return Instruction{Op: OpGte, A: a, B: b} }
func Lte(a, b Register) Instruction { return Instruction{Op: OpLte, A: a, B: b} }

func Jump(addr int) Instruction {
	return Instruction{Op: OpJump, Imm: int64(addr)}
}

func JumpIfTrue(addr int) Instruction {
	return Instruction{Op: OpJumpIfTrue, Imm: int64(addr)}
}

// Send posts a copy of the value in value to the mailbox of the actor whose
// Ref is in target.
func Send(target, value Register) Instruction {
	return Instruction{Op: OpSend, A: target, B: value}
}

func Recv(dest Register) Instruction { return Instruction{Op: OpRecv, A: dest} }

func Nop() Instruction  { return Instruction{Op: OpNop} }
func Halt() Instruction { return Instruction{Op: OpHalt} }

func threeReg(op Opcode, a, b, dest Register) Instruction {
	return Instruction{Op: op, A: a, B: b, C: dest}
}

// registers returns the register operands actually used by ins.
func (ins Instruction) registers() []Register {
	info, ok := opcodeTable[ins.Op]
	if !ok {
		return nil
	}
	return []Register{ins.A, ins.B, ins.C}[:info.Registers]
}

// Equal reports whether two instructions are identical. Float literals are
// compared by bit pattern.
func (ins Instruction) Equal(o Instruction) bool {
	return ins.Op == o.Op && ins.A == o.A && ins.B == o.B && ins.C == o.C &&
		ins.Imm == o.Imm && ins.Text == o.Text &&
		math.Float64bits(ins.Float) == math.Float64bits(o.Float)
}
