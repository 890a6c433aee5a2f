package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders an instruction in assembler form, e.g. "Add R0, R1, R2".
func (ins Instruction) String() string {
	info, ok := opcodeTable[ins.Op]
	if !ok {
		return ins.Op.String()
	}

	var args []string
	for _, r := range ins.registers() {
		args = append(args, r.String())
	}
	switch info.Operand {
	case OperandInt, OperandLength:
		args = append(args, strconv.FormatInt(ins.Imm, 10))
	case OperandFloat:
		args = append(args, strconv.FormatFloat(ins.Float, 'g', -1, 64))
	case OperandBool:
		args = append(args, strconv.FormatBool(ins.Imm != 0))
	case OperandRef:
		args = append(args, "#"+strconv.FormatUint(uint64(ins.Imm), 10))
	case OperandText:
		args = append(args, strconv.Quote(ins.Text))
	case OperandHeap:
		addr := "@" + strconv.FormatInt(ins.Imm, 10)
		if ins.Op == OpLoadHeap {
			args = append([]string{addr}, args...)
		} else {
			args = append(args, addr)
		}
	case OperandTarget:
		args = append(args, fmt.Sprintf("%04d", ins.Imm))
	}

	if len(args) == 0 {
		return info.Name
	}
	return info.Name + " " + strings.Join(args, ", ")
}

// Disassemble returns a human-readable listing of the program.
func (p Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable listing with a name header.
func (p Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; %d instructions\n", len(p)))

	// Mark jump targets so loops are easy to spot.
	targets := make(map[int64]bool)
	for _, ins := range p {
		if info, ok := opcodeTable[ins.Op]; ok && info.Operand == OperandTarget {
			targets[ins.Imm] = true
		}
	}

	for i, ins := range p {
		marker := "  "
		if targets[int64(i)] {
			marker = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%04d  %s\n", marker, i, ins))
	}
	return sb.String()
}
