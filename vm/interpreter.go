package vm

import "math"

// execute runs the body of one already-fetched instruction. PC has been
// advanced past ins, so jumps simply overwrite it.
func (a *Actor) execute(ins Instruction) (State, *Fault) {
	r := &a.regs

	switch ins.Op {
	case OpNop:

	case OpHalt:
		return Halted, nil

	// --- Literal loads ---
	case OpLoadInt:
		r.Set(ins.A, FromInt(ins.Imm))
	case OpLoadFloat:
		r.Set(ins.A, FromFloat(ins.Float))
	case OpLoadBool:
		r.Set(ins.A, FromBool(ins.Imm != 0))
	case OpLoadRef:
		r.Set(ins.A, FromRef(uint64(ins.Imm)))
	case OpLoadString:
		r.Set(ins.A, FromString(ins.Text))
	case OpLoadAtom:
		r.Set(ins.A, FromAtom(ins.Text))
	case OpLoadSelf:
		r.Set(ins.A, FromRef(a.ref))

	// --- Containers ---
	case OpMakeList, OpMakeTuple:
		if ins.Imm < 0 || ins.Imm > MaxContainerLen {
			return 0, faultf(FaultBadOperand, "length %d outside [0, %d]", ins.Imm, MaxContainerLen)
		}
		kind := KindList
		if ins.Op == OpMakeTuple {
			kind = KindTuple
		}
		r.Set(ins.A, filled(kind, int(ins.Imm)))
	case OpMakeMap:
		r.Set(ins.A, FromMap(nil))
	case OpSetIndexed:
		if f := a.setIndexed(ins); f != nil {
			return 0, f
		}
	case OpGetIndexed:
		if f := a.getIndexed(ins); f != nil {
			return 0, f
		}
	case OpMapPut:
		m := r.Get(ins.A)
		if !m.IsMap() {
			return 0, faultf(FaultTypeMismatch, "MapPut on %s", m.Kind())
		}
		m.m.Put(r.slots[ins.B], r.slots[ins.C])
		r.Set(ins.A, m)
	case OpMapGet:
		m := r.slots[ins.A]
		if !m.IsMap() {
			return 0, faultf(FaultTypeMismatch, "MapGet on %s", m.Kind())
		}
		v, ok := m.m.Get(r.slots[ins.B])
		r.Set(ins.C, v)
		r.Set(ZF, FromBool(ok))
	case OpLen:
		c := r.slots[ins.A]
		switch c.Kind() {
		case KindList, KindTuple, KindMap, KindString, KindAtom:
			r.Set(ins.B, FromInt(int64(c.Len())))
		default:
			return 0, faultf(FaultTypeMismatch, "Len on %s", c.Kind())
		}

	// --- Registers, heap, stack ---
	case OpMove:
		r.Set(ins.B, r.Get(ins.A))
	case OpStoreHeap:
		if ins.Imm < 0 || ins.Imm >= int64(len(a.heap)) {
			return 0, faultf(FaultHeapOutOfBounds, "address %d, heap size %d", ins.Imm, len(a.heap))
		}
		a.heap[ins.Imm] = r.Get(ins.A)
	case OpLoadHeap:
		if ins.Imm < 0 || ins.Imm >= int64(len(a.heap)) {
			return 0, faultf(FaultHeapOutOfBounds, "address %d, heap size %d", ins.Imm, len(a.heap))
		}
		r.Set(ins.A, a.heap[ins.Imm].Clone())
	case OpPush:
		a.stack = append(a.stack, r.slots[ins.A])
		r.Set(ins.A, FromRef(0))
	case OpPop:
		n := len(a.stack)
		if n == 0 {
			return 0, faultf(FaultStackUnderflow, "pop into %s", ins.A)
		}
		r.Set(ins.A, a.stack[n-1])
		a.stack[n-1] = Value{}
		a.stack = a.stack[:n-1]

	// --- Arithmetic ---
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		v, ok, f := arith(ins.Op, r.slots[ins.A], r.slots[ins.B])
		if f != nil {
			return 0, f
		}
		if ok {
			r.Set(ins.C, v)
		}

	// --- Comparison ---
	case OpEq, OpNe:
		if eq, ok := equalOperands(r.slots[ins.A], r.slots[ins.B]); ok {
			r.Set(ZF, FromBool(eq == (ins.Op == OpEq)))
		}
	case OpGt, OpLt, OpGte, OpLte:
		res, f := order(ins.Op, r.slots[ins.A], r.slots[ins.B])
		if f != nil {
			return 0, f
		}
		r.Set(ZF, FromBool(res))

	// --- Control flow ---
	case OpJump:
		r.SetPC(uint64(ins.Imm))
	case OpJumpIfTrue:
		if r.Flag() {
			r.SetPC(uint64(ins.Imm))
		}

	// --- Messaging ---
	case OpSend:
		if f := a.send(ins); f != nil {
			return 0, f
		}
	case OpRecv:
		v, ok := a.mailbox.Take()
		if !ok {
			a.waitReg = ins.A
			return Suspended, nil
		}
		a.received.Add(1)
		r.Set(ins.A, v)

	default:
		return 0, faultf(FaultBadOpcode, "opcode 0x%02X", byte(ins.Op))
	}
	return Running, nil
}

// setIndexed copies the list, writes the element and stores the copy back.
func (a *Actor) setIndexed(ins Instruction) *Fault {
	r := &a.regs
	c := r.slots[ins.A]
	idx := r.slots[ins.B]
	if !c.IsList() {
		return faultf(FaultTypeMismatch, "SetIndexed on %s", c.Kind())
	}
	if !idx.IsInt() {
		return faultf(FaultTypeMismatch, "SetIndexed index is %s", idx.Kind())
	}
	i := idx.Int()
	if i < 0 || i >= int64(len(c.elems)) {
		return faultf(FaultIndexOutOfBounds, "index %d, length %d", i, len(c.elems))
	}
	c = c.Clone()
	c.elems[i] = r.Get(ins.C)
	r.Set(ins.A, c)
	return nil
}

func (a *Actor) getIndexed(ins Instruction) *Fault {
	r := &a.regs
	c := r.slots[ins.A]
	idx := r.slots[ins.B]
	if !c.IsList() && !c.IsTuple() {
		return faultf(FaultTypeMismatch, "GetIndexed on %s", c.Kind())
	}
	if !idx.IsInt() {
		return faultf(FaultTypeMismatch, "GetIndexed index is %s", idx.Kind())
	}
	i := idx.Int()
	if i < 0 || i >= int64(len(c.elems)) {
		return faultf(FaultIndexOutOfBounds, "index %d, length %d", i, len(c.elems))
	}
	r.Set(ins.C, c.elems[i].Clone())
	return nil
}

func (a *Actor) send(ins Instruction) *Fault {
	target := a.regs.slots[ins.A]
	if !target.IsRef() {
		return faultf(FaultTypeMismatch, "Send target is %s", target.Kind())
	}
	if a.dir == nil {
		return faultf(FaultUnknownActor, "no directory to resolve %s", target)
	}
	mb, ok := a.dir.Lookup(target.RefID())
	if !ok {
		return faultf(FaultUnknownActor, "%s", target)
	}
	mb.Post(a.regs.slots[ins.B])
	a.sent.Add(1)
	return nil
}

// arith applies an arithmetic opcode. ok is false for operand pairs other
// than (Int, Int) and (Float, Float); those are silently ignored.
func arith(op Opcode, x, y Value) (v Value, ok bool, f *Fault) {
	switch {
	case x.IsInt() && y.IsInt():
		a, b := x.Int(), y.Int()
		switch op {
		case OpAdd:
			return FromInt(a + b), true, nil
		case OpSub:
			return FromInt(a - b), true, nil
		case OpMul:
			return FromInt(a * b), true, nil
		case OpDiv:
			if b == 0 {
				return Value{}, false, faultf(FaultDivisionByZero, "%d / 0", a)
			}
			return FromInt(a / b), true, nil
		case OpMod:
			if b == 0 {
				return Value{}, false, faultf(FaultDivisionByZero, "%d mod 0", a)
			}
			return FromInt(a % b), true, nil
		}
	case x.IsFloat() && y.IsFloat():
		a, b := x.Float(), y.Float()
		switch op {
		case OpAdd:
			return FromFloat(a + b), true, nil
		case OpSub:
			return FromFloat(a - b), true, nil
		case OpMul:
			return FromFloat(a * b), true, nil
		case OpDiv:
			return FromFloat(a / b), true, nil
		case OpMod:
			return FromFloat(math.Mod(a, b)), true, nil
		}
	}
	return Value{}, false, nil
}

// equalOperands compares operands for Eq/Ne. ok is false for unsupported
// pairs, which leave ZF untouched. Floats compare numerically here, so NaN
// is never equal to itself.
func equalOperands(x, y Value) (eq, ok bool) {
	switch {
	case x.IsInt() && y.IsInt():
		return x.Int() == y.Int(), true
	case x.IsFloat() && y.IsFloat():
		return x.Float() == y.Float(), true
	case x.IsString() && y.IsString():
		return x.Text() == y.Text(), true
	}
	return false, false
}

// order evaluates an ordered comparison. Unsupported pairs are fatal.
func order(op Opcode, x, y Value) (bool, *Fault) {
	var cmp int
	switch {
	case x.IsInt() && y.IsInt():
		a, b := x.Int(), y.Int()
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	case x.IsFloat() && y.IsFloat():
		a, b := x.Float(), y.Float()
		switch op {
		case OpGt:
			return a > b, nil
		case OpLt:
			return a < b, nil
		case OpGte:
			return a >= b, nil
		default:
			return a <= b, nil
		}
	default:
		return false, faultf(FaultUnorderedComparison, "%s %s %s", x.Kind(), op, y.Kind())
	}
	switch op {
	case OpGt:
		return cmp > 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpGte:
		return cmp >= 0, nil
	default:
		return cmp <= 0, nil
	}
}
