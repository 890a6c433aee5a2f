package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Directory resolves actor refs to mailboxes. It is the only way an
// executing actor reaches another actor.
type Directory interface {
	Lookup(ref uint64) (*Mailbox, bool)
}

// ---------------------------------------------------------------------------
// System: registry of the actors that can message each other
// ---------------------------------------------------------------------------

// System owns a set of actors and acts as their Directory. Refs are handed
// out from 1 upwards, so Ref(0), the default register contents, never names
// an actor.
type System struct {
	mu      sync.RWMutex
	actors  map[uint64]*Actor
	nextRef uint64

	defaults []ActorOption
	posted   chan struct{}
}

// NewSystem creates an empty system. defaults are applied to every actor
// before the options passed to CreateActor.
func NewSystem(defaults ...ActorOption) *System {
	return &System{
		actors:   make(map[uint64]*Actor),
		nextRef:  1,
		defaults: defaults,
		posted:   make(chan struct{}, 1),
	}
}

// CreateActor validates program and registers a new Running actor for it.
// Actors without an explicit name get "actor_<uuid>".
func (s *System) CreateActor(program Program, opts ...ActorOption) (*Actor, error) {
	if err := program.Validate(); err != nil {
		return nil, fmt.Errorf("create actor: %w", err)
	}

	all := make([]ActorOption, 0, len(s.defaults)+len(opts)+2)
	all = append(all, WithName("actor_"+uuid.New().String()))
	all = append(all, s.defaults...)
	all = append(all, opts...)
	all = append(all, WithDirectory(s))

	s.mu.Lock()
	defer s.mu.Unlock()

	ref := s.nextRef
	s.nextRef++
	a := NewActor(ref, program, all...)
	a.mailbox.setNotify(s.posted)
	s.actors[ref] = a
	return a, nil
}

// Lookup implements Directory.
func (s *System) Lookup(ref uint64) (*Mailbox, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[ref]
	if !ok {
		return nil, false
	}
	return a.mailbox, true
}

// Actor returns the actor registered under ref.
func (s *System) Actor(ref uint64) (*Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[ref]
	return a, ok
}

// Actors returns every actor ordered by ref.
func (s *System) Actors() []*Actor {
	s.mu.RLock()
	out := make([]*Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ref < out[j].ref })
	return out
}

// Len returns the number of registered actors.
func (s *System) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}

func (s *System) mustActor(ref uint64) (*Actor, error) {
	a, ok := s.Actor(ref)
	if !ok {
		return nil, fmt.Errorf("%w: ref %d", ErrUnknownActor, ref)
	}
	return a, nil
}

// Tick runs one step of the actor registered under ref.
func (s *System) Tick(ref uint64) (State, error) {
	a, err := s.mustActor(ref)
	if err != nil {
		return Halted, err
	}
	return a.Tick()
}

// PostMessage delivers a copy of v to the mailbox of the actor under ref.
// Safe for concurrent use from any goroutine.
func (s *System) PostMessage(ref uint64, v Value) error {
	a, err := s.mustActor(ref)
	if err != nil {
		return err
	}
	a.Post(v)
	return nil
}

// DumpRegisters returns a register snapshot of the actor under ref.
func (s *System) DumpRegisters(ref uint64) ([]RegisterEntry, error) {
	a, err := s.mustActor(ref)
	if err != nil {
		return nil, err
	}
	return a.DumpRegisters(), nil
}

// Posted returns a channel that receives a token after messages are posted
// to any actor of the system. Tokens coalesce; the channel never blocks
// posters. Schedulers use it to wake up instead of spinning while every
// actor is suspended.
func (s *System) Posted() <-chan struct{} {
	return s.posted
}
