package vm

import "sync"

// ---------------------------------------------------------------------------
// Mailbox: the only state shared between actors
// ---------------------------------------------------------------------------

// Mailbox is an unbounded FIFO of Values. Any number of goroutines may Post
// concurrently; Take is called by the owning actor only.
type Mailbox struct {
	mu    sync.Mutex
	queue []Value
	head  int

	// notify, when set, receives a token after every Post. Sends never block.
	notify chan<- struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Post appends a copy of v. It never fails and never blocks beyond the
// queue's critical section.
func (m *Mailbox) Post(v Value) {
	v = v.Clone()

	m.mu.Lock()
	m.queue = append(m.queue, v)
	notify := m.notify
	m.mu.Unlock()

	if notify != nil {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

// Take removes and returns the oldest entry. ok is false when the mailbox
// is empty; Take never blocks waiting for a message.
func (m *Mailbox) Take() (v Value, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.head == len(m.queue) {
		return Value{}, false
	}
	v = m.queue[m.head]
	m.queue[m.head] = Value{}
	m.head++

	// Compact once the consumed prefix dominates the backing array.
	if m.head == len(m.queue) {
		m.queue = m.queue[:0]
		m.head = 0
	} else if m.head > 32 && m.head*2 > len(m.queue) {
		n := copy(m.queue, m.queue[m.head:])
		clear(m.queue[n:])
		m.queue = m.queue[:n]
		m.head = 0
	}
	return v, true
}

// Len returns the number of entries waiting.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) - m.head
}

func (m *Mailbox) setNotify(ch chan<- struct{}) {
	m.mu.Lock()
	m.notify = ch
	m.mu.Unlock()
}
