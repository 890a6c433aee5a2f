package vm

import (
	"errors"
	"fmt"
)

// ValidationError reports one malformed instruction.
type ValidationError struct {
	Index   int
	Op      Opcode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %s", e.Index, e.Op, e.Message)
}

// Validate checks every instruction for unknown opcodes, register operands
// outside the register file, container lengths outside [0, MaxContainerLen],
// negative heap addresses and negative jump targets. All problems are
// returned joined.
//
// A program that passes may still fault at run time. Heap capacity is a
// property of the actor, and a jump past the end only faults once the
// target is fetched.
func (p Program) Validate() error {
	var errs []error
	bad := func(i int, ins Instruction, format string, args ...any) {
		errs = append(errs, &ValidationError{Index: i, Op: ins.Op, Message: fmt.Sprintf(format, args...)})
	}

	for i, ins := range p {
		info, ok := opcodeTable[ins.Op]
		if !ok {
			bad(i, ins, "unknown opcode 0x%02X", byte(ins.Op))
			continue
		}
		for _, r := range ins.registers() {
			if !r.Valid() {
				bad(i, ins, "register %d out of range", uint8(r))
			}
		}
		switch info.Operand {
		case OperandLength:
			if ins.Imm < 0 {
				bad(i, ins, "negative length %d", ins.Imm)
			} else if ins.Imm > MaxContainerLen {
				bad(i, ins, "length %d exceeds %d", ins.Imm, MaxContainerLen)
			}
		case OperandHeap:
			if ins.Imm < 0 {
				bad(i, ins, "negative heap address %d", ins.Imm)
			}
		case OperandTarget:
			if ins.Imm < 0 {
				bad(i, ins, "negative jump target %d", ins.Imm)
			}
		}
	}
	return errors.Join(errs...)
}
