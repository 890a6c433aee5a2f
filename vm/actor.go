package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Actor state
// ---------------------------------------------------------------------------

// State is the scheduling state of an actor.
type State int32

const (
	Running   State = iota
	Suspended       // blocked in Recv on an empty mailbox
	Halted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Halted:
		return "halted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DefaultHeapSize is the number of heap cells an actor gets when no size is
// configured.
const DefaultHeapSize = 256

// Stats counts the work an actor has done.
type Stats struct {
	Ticks        uint64 // Tick calls that were not no-ops
	Instructions uint64 // instructions fetched
	Received     uint64 // messages taken from the mailbox
	Sent         uint64 // messages posted by Send
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type actorConfig struct {
	name      string
	heapSize  int
	heap      []Value
	stackHint int
	dir       Directory
}

// ActorOption configures a new actor.
type ActorOption func(*actorConfig)

// WithName sets the actor's diagnostic name.
func WithName(name string) ActorOption {
	return func(c *actorConfig) { c.name = name }
}

// WithHeapSize sets the number of pre-allocated heap cells.
func WithHeapSize(n int) ActorOption {
	return func(c *actorConfig) { c.heapSize = n }
}

// WithHeap seeds the first heap cells with copies of values. The heap is
// grown to hold them if the configured size is smaller.
func WithHeap(values []Value) ActorOption {
	return func(c *actorConfig) { c.heap = values }
}

// WithStackHint pre-allocates stack capacity.
func WithStackHint(n int) ActorOption {
	return func(c *actorConfig) { c.stackHint = n }
}

// WithDirectory sets the directory used to resolve Send targets.
func WithDirectory(d Directory) ActorOption {
	return func(c *actorConfig) { c.dir = d }
}

// ---------------------------------------------------------------------------
// Actor
// ---------------------------------------------------------------------------

// Actor is one isolated VM instance: registers, stack, heap, mailbox and a
// program. Its state is touched only from Tick (and the read-only
// snapshots, which take the same lock); other actors reach it only through
// its Mailbox.
type Actor struct {
	ref  uint64
	name string

	exec sync.Mutex // held for the duration of a Tick

	regs    Registers
	stack   []Value
	heap    []Value
	program Program
	mailbox *Mailbox
	dir     Directory

	state   atomic.Int32
	waitReg Register // destination of the pending Recv while Suspended

	mu    sync.Mutex
	fault *Fault

	ticks        atomic.Uint64
	instructions atomic.Uint64
	received     atomic.Uint64
	sent         atomic.Uint64
}

// NewActor creates a Running actor with the given ref. The program is not
// validated here; see Program.Validate and System.CreateActor.
func NewActor(ref uint64, program Program, opts ...ActorOption) *Actor {
	cfg := actorConfig{heapSize: DefaultHeapSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.heapSize < len(cfg.heap) {
		cfg.heapSize = len(cfg.heap)
	}
	if cfg.heapSize < 0 {
		cfg.heapSize = 0
	}

	a := &Actor{
		ref:     ref,
		name:    cfg.name,
		heap:    make([]Value, cfg.heapSize),
		program: append(Program(nil), program...),
		mailbox: NewMailbox(),
		dir:     cfg.dir,
	}
	if a.name == "" {
		a.name = fmt.Sprintf("actor-%d", ref)
	}
	if cfg.stackHint > 0 {
		a.stack = make([]Value, 0, cfg.stackHint)
	}
	a.regs.Reset()
	for i := range a.heap {
		a.heap[i] = FromRef(0)
	}
	for i, v := range cfg.heap {
		a.heap[i] = v.Clone()
	}
	a.state.Store(int32(Running))
	return a
}

// Ref returns the handle other actors use to address this actor.
func (a *Actor) Ref() uint64 { return a.ref }

// Name returns the diagnostic name.
func (a *Actor) Name() string { return a.name }

// Mailbox returns the actor's inbound queue.
func (a *Actor) Mailbox() *Mailbox { return a.mailbox }

// Program returns a copy of the loaded program.
func (a *Actor) Program() Program { return append(Program(nil), a.program...) }

// State returns the current scheduling state.
func (a *Actor) State() State { return State(a.state.Load()) }

// Post enqueues a copy of v in the actor's mailbox. Safe for concurrent use.
func (a *Actor) Post(v Value) { a.mailbox.Post(v) }

// Fault returns the fault that halted the actor, or nil.
func (a *Actor) Fault() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fault == nil {
		return nil
	}
	return a.fault
}

// Stats returns the actor's counters.
func (a *Actor) Stats() Stats {
	return Stats{
		Ticks:        a.ticks.Load(),
		Instructions: a.instructions.Load(),
		Received:     a.received.Load(),
		Sent:         a.sent.Load(),
	}
}

// Halt stops the actor from outside, e.g. when a scheduler policy decides
// to terminate it. Further ticks are no-ops.
func (a *Actor) Halt() {
	a.exec.Lock()
	defer a.exec.Unlock()
	a.state.Store(int32(Halted))
}

// DumpRegisters returns a snapshot of the register file in register order.
func (a *Actor) DumpRegisters() []RegisterEntry {
	a.exec.Lock()
	defer a.exec.Unlock()
	return a.regs.Snapshot()
}

// Register returns a copy of one register.
func (a *Actor) Register(r Register) Value {
	a.exec.Lock()
	defer a.exec.Unlock()
	return a.regs.Get(r)
}

// HeapCell returns a copy of heap cell addr.
func (a *Actor) HeapCell(addr int) (Value, bool) {
	a.exec.Lock()
	defer a.exec.Unlock()
	if addr < 0 || addr >= len(a.heap) {
		return Value{}, false
	}
	return a.heap[addr].Clone(), true
}

// StackDepth returns the number of values on the stack.
func (a *Actor) StackDepth() int {
	a.exec.Lock()
	defer a.exec.Unlock()
	return len(a.stack)
}

// ---------------------------------------------------------------------------
// Tick: one fetch-decode-execute step
// ---------------------------------------------------------------------------

// Tick runs one step and returns the resulting state.
//
//   - Halted: no-op, returns Halted and a nil error.
//   - Suspended: polls the mailbox for the pending Recv; on success the
//     message is delivered and the actor is Running again.
//   - Running: fetches program[PC], advances PC, then executes.
//
// A non-nil error is always a *Fault. Fatal faults leave the actor Halted;
// a type mismatch leaves it Running with PC past the faulting instruction.
func (a *Actor) Tick() (st State, err error) {
	a.exec.Lock()
	defer a.exec.Unlock()

	switch State(a.state.Load()) {
	case Halted:
		return Halted, nil
	case Suspended:
		a.ticks.Add(1)
		return a.poll(), nil
	}
	a.ticks.Add(1)

	pc, perr := a.regs.PC()
	if perr != nil {
		return a.fail(&Fault{Kind: FaultCorruptPC, Detail: perr.Error()}, 0, OpNop)
	}
	if pc >= uint64(len(a.program)) {
		return a.fail(faultf(FaultPCOutOfBounds, "pc %d, program length %d", pc, len(a.program)), pc, OpNop)
	}
	ins := a.program[pc]
	a.regs.SetPC(pc + 1)
	a.instructions.Add(1)

	defer func() {
		if r := recover(); r != nil {
			st, err = a.fail(faultf(FaultInternal, "%v", r), pc, ins.Op)
		}
	}()

	next, f := a.execute(ins)
	if f != nil {
		return a.fail(f, pc, ins.Op)
	}
	a.state.Store(int32(next))
	return next, nil
}

// poll retries the pending Recv.
func (a *Actor) poll() State {
	v, ok := a.mailbox.Take()
	if !ok {
		return Suspended
	}
	a.received.Add(1)
	a.regs.Set(a.waitReg, v)
	a.state.Store(int32(Running))
	return Running
}

// fail records f against the instruction at pc. Fatal faults halt the actor.
func (a *Actor) fail(f *Fault, pc uint64, op Opcode) (State, error) {
	f.Actor = a.ref
	f.PC = pc
	f.Op = op
	if !f.Fatal() {
		return State(a.state.Load()), f
	}
	a.mu.Lock()
	a.fault = f
	a.mu.Unlock()
	a.state.Store(int32(Halted))
	return Halted, f
}
