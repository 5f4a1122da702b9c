package chanmgr_test

import (
	"sync"
	"testing"
	"time"

	"github.com/goatlang/goat/internal/chanmgr"
)

func TestPushPopFIFO(t *testing.T) {
	m := chanmgr.New()
	idx := m.NewChannel(2)
	q := m.Get(idx)

	q.Push(1)
	q.Push(2)
	if v := q.Pop(); v != 1 {
		t.Errorf("Pop #1 = %d, want 1", v)
	}
	if v := q.Pop(); v != 2 {
		t.Errorf("Pop #2 = %d, want 2", v)
	}
}

func TestPushBlocksWhenFull(t *testing.T) {
	m := chanmgr.New()
	q := m.Get(m.NewChannel(1))
	q.Push(10)

	pushed := make(chan struct{})
	go func() {
		q.Push(20)
		close(pushed)
	}()

	select {
	case <-pushed:
		t.Fatal("Push on a full queue returned before room was made")
	case <-time.After(20 * time.Millisecond):
	}

	if v := q.Pop(); v != 10 {
		t.Fatalf("Pop = %d, want 10", v)
	}
	<-pushed
	if v := q.Pop(); v != 20 {
		t.Fatalf("Pop = %d, want 20", v)
	}
}

func TestZeroCapacityRendezvous(t *testing.T) {
	m := chanmgr.New()
	q := m.Get(m.NewChannel(0))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Push(7)
	}()

	if v := q.Pop(); v != 7 {
		t.Fatalf("Pop = %d, want 7", v)
	}
	wg.Wait()
}

func TestTryPushTryPop(t *testing.T) {
	m := chanmgr.New()
	q := m.Get(m.NewChannel(1))

	if !q.TryPush(1) {
		t.Fatal("TryPush on empty bounded queue should succeed")
	}
	if q.TryPush(2) {
		t.Fatal("TryPush on full queue should fail")
	}
	v, ok := q.TryPop()
	if !ok || v != 1 {
		t.Fatalf("TryPop = (%d, %v), want (1, true)", v, ok)
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop on empty queue should fail")
	}
}
