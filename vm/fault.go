package vm

import (
	"errors"
	"fmt"
)

// FaultKind classifies an execution failure.
type FaultKind uint8

const (
	FaultInternal FaultKind = iota
	FaultPCOutOfBounds
	FaultCorruptPC
	FaultStackUnderflow
	FaultHeapOutOfBounds
	FaultIndexOutOfBounds
	FaultDivisionByZero
	FaultUnorderedComparison
	FaultBadOperand
	FaultBadOpcode
	FaultUnknownActor
	FaultTypeMismatch
)

// Sentinel errors, one per FaultKind. A *Fault unwraps to its sentinel so
// callers can use errors.Is.
var (
	ErrInternal            = errors.New("internal error")
	ErrPCOutOfBounds       = errors.New("pc out of program bounds")
	ErrCorruptPC           = errors.New("pc register corrupt")
	ErrStackUnderflow      = errors.New("stack underflow")
	ErrHeapOutOfBounds     = errors.New("heap address out of bounds")
	ErrIndexOutOfBounds    = errors.New("index out of bounds")
	ErrDivisionByZero      = errors.New("integer division by zero")
	ErrUnorderedComparison = errors.New("ordered comparison on unsupported operands")
	ErrBadOperand          = errors.New("bad operand")
	ErrBadOpcode           = errors.New("unknown opcode")
	ErrUnknownActor        = errors.New("unknown actor")
	ErrTypeMismatch        = errors.New("type mismatch")
)

var faultSentinels = [...]error{
	FaultInternal:            ErrInternal,
	FaultPCOutOfBounds:       ErrPCOutOfBounds,
	FaultCorruptPC:           ErrCorruptPC,
	FaultStackUnderflow:      ErrStackUnderflow,
	FaultHeapOutOfBounds:     ErrHeapOutOfBounds,
	FaultIndexOutOfBounds:    ErrIndexOutOfBounds,
	FaultDivisionByZero:      ErrDivisionByZero,
	FaultUnorderedComparison: ErrUnorderedComparison,
	FaultBadOperand:          ErrBadOperand,
	FaultBadOpcode:           ErrBadOpcode,
	FaultUnknownActor:        ErrUnknownActor,
	FaultTypeMismatch:        ErrTypeMismatch,
}

var faultNames = [...]string{
	FaultInternal:            "internal",
	FaultPCOutOfBounds:       "pc_out_of_bounds",
	FaultCorruptPC:           "corrupt_pc",
	FaultStackUnderflow:      "stack_underflow",
	FaultHeapOutOfBounds:     "heap_out_of_bounds",
	FaultIndexOutOfBounds:    "index_out_of_bounds",
	FaultDivisionByZero:      "division_by_zero",
	FaultUnorderedComparison: "unordered_comparison",
	FaultBadOperand:          "bad_operand",
	FaultBadOpcode:           "bad_opcode",
	FaultUnknownActor:        "unknown_actor",
	FaultTypeMismatch:        "type_mismatch",
}

// String returns a stable snake_case name, suitable as a metric label.
func (k FaultKind) String() string {
	if int(k) < len(faultNames) {
		return faultNames[k]
	}
	return fmt.Sprintf("fault(%d)", uint8(k))
}

// Fatal reports whether a fault of this kind terminates the actor. Only type
// mismatches on container instructions are reported without halting.
func (k FaultKind) Fatal() bool {
	return k != FaultTypeMismatch
}

func (k FaultKind) sentinel() error {
	if int(k) < len(faultSentinels) {
		return faultSentinels[k]
	}
	return ErrInternal
}

// Fault describes a failure raised while executing one instruction.
type Fault struct {
	Kind   FaultKind
	Actor  uint64 // ref of the executing actor
	PC     uint64 // address of the faulting instruction
	Op     Opcode
	Detail string
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("actor %d: pc %d (%s): %s", f.Actor, f.PC, f.Op, f.Kind.sentinel())
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

// Unwrap returns the sentinel error for the fault's kind.
func (f *Fault) Unwrap() error {
	return f.Kind.sentinel()
}

// Fatal reports whether the fault halted the actor.
func (f *Fault) Fatal() bool {
	return f.Kind.Fatal()
}

// AsFault extracts a *Fault from err.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// faultf is used by the executor; Actor/PC/Op are filled in by the caller.
func faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
