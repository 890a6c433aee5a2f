package vm

import (
	"errors"
	"strings"
	"testing"
)

func TestSystemRefsStartAtOne(t *testing.T) {
	sys := NewSystem()
	a, err := sys.CreateActor(Program{Halt()})
	if err != nil {
		t.Fatal(err)
	}
	b, err := sys.CreateActor(Program{Halt()}, WithName("b"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Ref() != 1 || b.Ref() != 2 {
		t.Errorf("refs = %d, %d; want 1, 2", a.Ref(), b.Ref())
	}
	if !strings.HasPrefix(a.Name(), "actor_") {
		t.Errorf("default name = %q", a.Name())
	}
	if b.Name() != "b" {
		t.Errorf("name = %q", b.Name())
	}
	if sys.Len() != 2 {
		t.Errorf("Len = %d", sys.Len())
	}
	actors := sys.Actors()
	if actors[0] != a || actors[1] != b {
		t.Error("Actors not ordered by ref")
	}
}

func TestSystemRejectsInvalidProgram(t *testing.T) {
	sys := NewSystem()
	_, err := sys.CreateActor(Program{Jump(-5)})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if sys.Len() != 0 {
		t.Error("invalid program registered an actor")
	}
}

func TestSystemAcceptsUnreachedJumpPastEnd(t *testing.T) {
	sys := NewSystem()
	a, err := sys.CreateActor(Program{Halt(), Jump(99)})
	if err != nil {
		t.Fatalf("CreateActor: %v", err)
	}
	st, err := sys.Tick(a.Ref())
	if st != Halted || err != nil {
		t.Errorf("tick = %s, %v; want halted", st, err)
	}
	if a.Fault() != nil {
		t.Errorf("Fault() = %v", a.Fault())
	}
}

func TestSystemUnknownActor(t *testing.T) {
	sys := NewSystem()
	if _, err := sys.Tick(3); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("Tick err = %v", err)
	}
	if err := sys.PostMessage(3, FromInt(1)); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("PostMessage err = %v", err)
	}
	if _, err := sys.DumpRegisters(3); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("DumpRegisters err = %v", err)
	}
}

func TestSystemDefaults(t *testing.T) {
	sys := NewSystem(WithHeapSize(2))
	a, err := sys.CreateActor(Program{StoreHeap(R0, 2), Halt()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Tick(); !errors.Is(err, ErrHeapOutOfBounds) {
		t.Errorf("err = %v", err)
	}

	b, _ := sys.CreateActor(Program{StoreHeap(R0, 2), Halt()}, WithHeapSize(3))
	if _, err := b.Tick(); err != nil {
		t.Errorf("per-actor option should override default: %v", err)
	}
}

// Actor A sends Int(42) to actor B, which is suspended in Recv.
func TestSystemSendRecv(t *testing.T) {
	sys := NewSystem()
	b, _ := sys.CreateActor(Program{Recv(R1), Halt()})
	a, _ := sys.CreateActor(Program{
		LoadRef(R3, b.Ref()),
		LoadInt(R0, 42),
		Send(R3, R0),
		Halt(),
	})

	if st, err := sys.Tick(b.Ref()); st != Suspended || err != nil {
		t.Fatalf("B tick = %s, %v; want suspended", st, err)
	}
	for i := 0; i < 4; i++ {
		if _, err := sys.Tick(a.Ref()); err != nil {
			t.Fatalf("A tick %d: %v", i, err)
		}
	}
	if a.State() != Halted {
		t.Errorf("A state = %s", a.State())
	}

	if st, err := sys.Tick(b.Ref()); st != Running || err != nil {
		t.Fatalf("B tick = %s, %v; want running", st, err)
	}
	mustReg(t, b, R1, FromInt(42))
	if st, _ := sys.Tick(b.Ref()); st != Halted {
		t.Errorf("B final state = %s", st)
	}
	if a.Stats().Sent != 1 || b.Stats().Received != 1 {
		t.Errorf("stats: A %+v, B %+v", a.Stats(), b.Stats())
	}
}

func TestSystemSendCopies(t *testing.T) {
	sys := NewSystem()
	b, _ := sys.CreateActor(Program{Recv(R1), Halt()})
	a, _ := sys.CreateActor(Program{
		LoadRef(R0, b.Ref()),
		MakeList(R2, 1),
		Send(R0, R2),
		LoadInt(R3, 0),
		LoadInt(R4, 9),
		SetIndexed(R2, R3, R4),
		Halt(),
	})
	for i := 0; i < 7; i++ {
		sys.Tick(a.Ref())
	}
	sys.Tick(b.Ref())
	mustReg(t, b, R1, NewList(FromRef(0)))
	mustReg(t, a, R2, NewList(FromInt(9)))
}

func TestSystemSendToUnknownActorIsFatal(t *testing.T) {
	sys := NewSystem()
	a, _ := sys.CreateActor(Program{LoadRef(R0, 99), Send(R0, R1), Halt()})
	sys.Tick(a.Ref())
	st, err := sys.Tick(a.Ref())
	if st != Halted || !errors.Is(err, ErrUnknownActor) {
		t.Fatalf("tick = %s, %v", st, err)
	}
	f, _ := AsFault(err)
	if f.Actor != a.Ref() || f.PC != 1 || f.Op != OpSend {
		t.Errorf("fault = %+v", f)
	}
}

func TestSystemSendToRefZero(t *testing.T) {
	sys := NewSystem()
	a, _ := sys.CreateActor(Program{Send(R0, R1), Halt()})
	if _, err := a.Tick(); !errors.Is(err, ErrUnknownActor) {
		t.Errorf("err = %v", err)
	}
}

func TestSystemSendTargetMismatch(t *testing.T) {
	sys := NewSystem()
	a, _ := sys.CreateActor(Program{LoadInt(R0, 1), Send(R0, R1), Halt()})
	sys.Tick(a.Ref())
	st, err := sys.Tick(a.Ref())
	if st != Running || !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("tick = %s, %v", st, err)
	}
}

// A client sends its own ref; the server replies to whoever asked.
func TestSystemRequestReply(t *testing.T) {
	sys := NewSystem()
	server, _ := sys.CreateActor(Program{
		Recv(R0),
		LoadAtom(R1, "pong"),
		Send(R0, R1),
		Halt(),
	})
	client, _ := sys.CreateActor(Program{
		LoadRef(R0, server.Ref()),
		LoadSelf(R1),
		Send(R0, R1),
		Recv(R2),
		Halt(),
	})

	for i := 0; i < 20; i++ {
		for _, a := range sys.Actors() {
			if _, err := a.Tick(); err != nil {
				t.Fatalf("%s: %v", a.Name(), err)
			}
		}
	}
	if client.State() != Halted || server.State() != Halted {
		t.Fatalf("states: client %s, server %s", client.State(), server.State())
	}
	mustReg(t, client, R2, FromAtom("pong"))
}

func TestSystemPostedSignal(t *testing.T) {
	sys := NewSystem()
	a, _ := sys.CreateActor(Program{Recv(R0), Halt()})

	select {
	case <-sys.Posted():
		t.Fatal("unexpected token before any post")
	default:
	}

	if err := sys.PostMessage(a.Ref(), FromInt(1)); err != nil {
		t.Fatal(err)
	}
	a.Post(FromInt(2))

	select {
	case <-sys.Posted():
	default:
		t.Fatal("no token after post")
	}
	select {
	case <-sys.Posted():
		t.Fatal("tokens should coalesce")
	default:
	}
}

func TestSystemDumpRegisters(t *testing.T) {
	sys := NewSystem()
	a, _ := sys.CreateActor(Program{LoadInt(R1, 123), Move(R1, R0), Add(R0, R1, R2), Halt()})
	for i := 0; i < 4; i++ {
		sys.Tick(a.Ref())
	}
	entries, err := sys.DumpRegisters(a.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != NumRegisters {
		t.Fatalf("entries = %d", len(entries))
	}
	out := FormatRegisters(entries)
	for _, want := range []string{"R0  = Int(123)\n", "R2  = Int(246)\n", "PC  = Ref(4)\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
