package vm

import (
	"sync"
	"testing"
)

func TestMailboxFIFO(t *testing.T) {
	mb := NewMailbox()
	if _, ok := mb.Take(); ok {
		t.Fatal("Take on empty mailbox should report empty")
	}

	for i := 0; i < 100; i++ {
		mb.Post(FromInt(int64(i)))
	}
	if mb.Len() != 100 {
		t.Fatalf("Len = %d, want 100", mb.Len())
	}
	for i := 0; i < 100; i++ {
		v, ok := mb.Take()
		if !ok || v.Int() != int64(i) {
			t.Fatalf("Take #%d = %s, %v", i, v, ok)
		}
	}
	if _, ok := mb.Take(); ok {
		t.Error("mailbox should be drained")
	}
}

func TestMailboxPostCopies(t *testing.T) {
	mb := NewMailbox()
	l := NewList(FromInt(1))
	mb.Post(l)
	l.elems[0] = FromInt(2)

	v, _ := mb.Take()
	if e, _ := v.At(0); e.Int() != 1 {
		t.Errorf("posted value aliased sender's list: %s", v)
	}
}

func TestMailboxInterleavedTakeAndPost(t *testing.T) {
	mb := NewMailbox()
	next := int64(0)
	for round := 0; round < 50; round++ {
		for i := 0; i < 3; i++ {
			mb.Post(FromInt(int64(round*3 + i)))
		}
		for i := 0; i < 2; i++ {
			v, ok := mb.Take()
			if !ok || v.Int() != next {
				t.Fatalf("round %d: Take = %s, %v, want Int(%d)", round, v, ok, next)
			}
			next++
		}
	}
	if mb.Len() != 50 {
		t.Errorf("Len = %d, want 50", mb.Len())
	}
}

func TestMailboxConcurrentPostersKeepProgramOrder(t *testing.T) {
	const posters = 8
	const perPoster = 500

	mb := NewMailbox()
	var wg sync.WaitGroup
	for p := 0; p < posters; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPoster; i++ {
				mb.Post(NewTuple(FromInt(int64(p)), FromInt(int64(i))))
			}
		}(p)
	}
	wg.Wait()

	last := make([]int64, posters)
	for i := range last {
		last[i] = -1
	}
	n := 0
	for {
		v, ok := mb.Take()
		if !ok {
			break
		}
		n++
		p, _ := v.At(0)
		seq, _ := v.At(1)
		if seq.Int() != last[p.Int()]+1 {
			t.Fatalf("poster %d: got seq %d after %d", p.Int(), seq.Int(), last[p.Int()])
		}
		last[p.Int()] = seq.Int()
	}
	if n != posters*perPoster {
		t.Errorf("took %d messages, want %d", n, posters*perPoster)
	}
}

func TestMailboxNotify(t *testing.T) {
	ch := make(chan struct{}, 1)
	mb := NewMailbox()
	mb.setNotify(ch)

	mb.Post(FromInt(1))
	mb.Post(FromInt(2)) // coalesces, must not block

	select {
	case <-ch:
	default:
		t.Fatal("expected a notification")
	}
	select {
	case <-ch:
		t.Fatal("notifications should coalesce")
	default:
	}
}
