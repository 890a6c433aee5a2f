package vm

import (
	"fmt"
	"strings"
)

// Register names one slot of the register file.
type Register uint8

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	PC // program counter, always a Ref into the program
	ZF // comparison flag, a Bool
	LR // link register, reserved for call/return

	NumRegisters = int(LR) + 1
)

var registerNames = [NumRegisters]string{
	"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "PC", "ZF", "LR",
}

// String returns the register mnemonic.
func (r Register) String() string {
	if r.Valid() {
		return registerNames[r]
	}
	return fmt.Sprintf("Register(%d)", uint8(r))
}

// Valid reports whether r names a slot of the register file.
func (r Register) Valid() bool {
	return int(r) < NumRegisters
}

// ParseRegister returns the register with the given mnemonic.
func ParseRegister(name string) (Register, bool) {
	for i, n := range registerNames {
		if strings.EqualFold(n, name) {
			return Register(i), true
		}
	}
	return 0, false
}

// Registers is the fixed register file of one actor.
type Registers struct {
	slots [NumRegisters]Value
}

// NewRegisters returns a register file with every slot Ref(0) except ZF,
// which starts as Bool(false).
func NewRegisters() *Registers {
	rf := &Registers{}
	rf.Reset()
	return rf
}

// Reset restores the initial contents.
func (rf *Registers) Reset() {
	for i := range rf.slots {
		rf.slots[i] = FromRef(0)
	}
	rf.slots[ZF] = FromBool(false)
}

// Get returns a copy of the value in r.
func (rf *Registers) Get(r Register) Value {
	return rf.slots[r].Clone()
}

// Set replaces the contents of r with v.
func (rf *Registers) Set(r Register, v Value) {
	rf.slots[r] = v
}

// PC returns the program counter. A PC holding anything but a Ref means the
// instruction stream is corrupt.
func (rf *Registers) PC() (uint64, error) {
	pc := rf.slots[PC]
	if !pc.IsRef() {
		return 0, fmt.Errorf("%w: PC holds %s", ErrCorruptPC, pc.Kind())
	}
	return pc.RefID(), nil
}

// SetPC stores a new program counter.
func (rf *Registers) SetPC(pc uint64) {
	rf.slots[PC] = FromRef(pc)
}

// Flag reports whether ZF currently holds Bool(true).
func (rf *Registers) Flag() bool {
	zf := rf.slots[ZF]
	return zf.IsBool() && zf.Bool()
}

// RegisterEntry is one row of a register dump.
type RegisterEntry struct {
	Name  string
	Value Value
}

// Snapshot returns copies of every slot in register order.
func (rf *Registers) Snapshot() []RegisterEntry {
	out := make([]RegisterEntry, NumRegisters)
	for i := range rf.slots {
		out[i] = RegisterEntry{Name: registerNames[i], Value: rf.slots[i].Clone()}
	}
	return out
}

// FormatRegisters renders a register dump one slot per line.
func FormatRegisters(entries []RegisterEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%-3s = %s\n", e.Name, e.Value)
	}
	return sb.String()
}
