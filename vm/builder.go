package vm

import "fmt"

// ---------------------------------------------------------------------------
// Builder: helper for constructing programs with forward jumps
// ---------------------------------------------------------------------------

// Builder accumulates instructions and resolves jump labels.
type Builder struct {
	prog   Program
	labels []*Label
}

// Label is a jump target that may be referenced before it is marked.
type Label struct {
	name     string
	resolved bool
	position int
	refs     []int // indices of jumps waiting for this label
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns the number of instructions emitted so far, which is also the
// address of the next instruction.
func (b *Builder) Len() int {
	return len(b.prog)
}

// Emit appends instructions.
func (b *Builder) Emit(ins ...Instruction) *Builder {
	b.prog = append(b.prog, ins...)
	return b
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel(name string) *Label {
	l := &Label{name: name}
	b.labels = append(b.labels, l)
	return l
}

// Mark resolves a label to the current position and patches every jump
// already emitted against it.
func (b *Builder) Mark(l *Label) {
	if l.resolved {
		panic(fmt.Sprintf("label %q already resolved", l.name))
	}
	l.resolved = true
	l.position = len(b.prog)
	for _, ref := range l.refs {
		b.prog[ref].Imm = int64(l.position)
	}
	l.refs = nil
}

// Jump emits an unconditional jump to l.
func (b *Builder) Jump(l *Label) *Builder {
	return b.emitJump(OpJump, l)
}

// JumpIfTrue emits a conditional jump to l.
func (b *Builder) JumpIfTrue(l *Label) *Builder {
	return b.emitJump(OpJumpIfTrue, l)
}

func (b *Builder) emitJump(op Opcode, l *Label) *Builder {
	ins := Instruction{Op: op}
	if l.resolved {
		ins.Imm = int64(l.position)
	} else {
		l.refs = append(l.refs, len(b.prog))
	}
	b.prog = append(b.prog, ins)
	return b
}

// Program returns the finished program. It fails if a referenced label was
// never marked or the result does not validate.
func (b *Builder) Program() (Program, error) {
	for _, l := range b.labels {
		if !l.resolved && len(l.refs) > 0 {
			return nil, fmt.Errorf("label %q referenced but never marked", l.name)
		}
	}
	prog := make(Program, len(b.prog))
	copy(prog, b.prog)
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}
