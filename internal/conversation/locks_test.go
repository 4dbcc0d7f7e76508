package conversation

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSenderLocksSerializeSameID(t *testing.T) {
	locks := newSenderLocks()
	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same")
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxActive)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", n)
	}
}

func TestSenderLocksIndependentIDs(t *testing.T) {
	locks := newSenderLocks()

	unlockA := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	if n := locks.size(); n != 1 {
		t.Fatalf("expected only a's lock to remain, got %d", n)
	}
	unlockA()
	if n := locks.size(); n != 0 {
		t.Fatalf("expected empty lock table, got %d", n)
	}
}
