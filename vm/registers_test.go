package vm

import (
	"errors"
	"strings"
	"testing"
)

func TestRegistersInitialValues(t *testing.T) {
	rf := NewRegisters()
	for i := 0; i < NumRegisters; i++ {
		r := Register(i)
		want := FromRef(0)
		if r == ZF {
			want = FromBool(false)
		}
		if got := rf.Get(r); !got.Equal(want) {
			t.Errorf("%s = %s, want %s", r, got, want)
		}
	}
}

func TestRegistersGetReturnsCopy(t *testing.T) {
	rf := NewRegisters()
	rf.Set(R0, NewList(FromInt(1)))

	got := rf.Get(R0)
	got.elems[0] = FromInt(2)

	if e, _ := rf.Get(R0).At(0); e.Int() != 1 {
		t.Errorf("register aliased by Get: element = %s", e)
	}
}

func TestRegistersPC(t *testing.T) {
	rf := NewRegisters()
	rf.SetPC(7)
	pc, err := rf.PC()
	if err != nil || pc != 7 {
		t.Fatalf("PC() = %d, %v", pc, err)
	}

	rf.Set(PC, FromInt(7))
	if _, err := rf.PC(); !errors.Is(err, ErrCorruptPC) {
		t.Errorf("PC() with Int tag: err = %v, want ErrCorruptPC", err)
	}
}

func TestRegistersFlag(t *testing.T) {
	rf := NewRegisters()
	if rf.Flag() {
		t.Error("initial flag should be false")
	}
	rf.Set(ZF, FromBool(true))
	if !rf.Flag() {
		t.Error("flag should be true")
	}
	rf.Set(ZF, FromInt(1))
	if rf.Flag() {
		t.Error("Int(1) in ZF is not Bool(true)")
	}
}

func TestParseRegister(t *testing.T) {
	for i, name := range registerNames {
		r, ok := ParseRegister(strings.ToLower(name))
		if !ok || r != Register(i) {
			t.Errorf("ParseRegister(%q) = %v, %v", name, r, ok)
		}
	}
	if _, ok := ParseRegister("R8"); ok {
		t.Error("R8 should not parse")
	}
	if Register(11).Valid() {
		t.Error("Register(11) should be invalid")
	}
}

func TestSnapshotOrderAndFormat(t *testing.T) {
	rf := NewRegisters()
	rf.Set(R2, FromInt(246))

	snap := rf.Snapshot()
	if len(snap) != NumRegisters {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	names := make([]string, len(snap))
	for i, e := range snap {
		names[i] = e.Name
	}
	if got := strings.Join(names, ","); got != "R0,R1,R2,R3,R4,R5,R6,R7,PC,ZF,LR" {
		t.Errorf("order = %s", got)
	}

	out := FormatRegisters(snap)
	if !strings.Contains(out, "R2  = Int(246)\n") {
		t.Errorf("FormatRegisters output missing R2 line:\n%s", out)
	}
	if !strings.Contains(out, "ZF  = Bool(false)\n") {
		t.Errorf("FormatRegisters output missing ZF line:\n%s", out)
	}
}
