package ring

import (
	"sync"
	"testing"
)

func TestPushPopPreservesOrder(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 5; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got (%d, %v)", i, v, ok)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Fatalf("expected empty ring")
	}
}

// Capacity 4 stays 4, one slot reserved: only 3 pushes fit.
func TestRingWrap(t *testing.T) {
	r := New[int](4)
	if r.Cap() != 4 {
		t.Fatalf("expected capacity 4, got %d", r.Cap())
	}
	if !r.Push(1) || !r.Push(2) || !r.Push(3) {
		t.Fatalf("expected first 3 pushes to succeed")
	}
	if r.Push(4) {
		t.Fatalf("4th push should fail: one slot is reserved")
	}

	if v, ok := r.Pop(); !ok || v != 1 {
		t.Fatalf("unexpected pop: %d %v", v, ok)
	}
	if v, ok := r.Pop(); !ok || v != 2 {
		t.Fatalf("unexpected pop: %d %v", v, ok)
	}

	if !r.Push(4) || !r.Push(5) {
		t.Fatalf("expected both pushes after draining to succeed")
	}
}

func TestSizePlusFreeEqualsCapacityMinusOne(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 100; i++ {
		r.Push(i)
		free := (r.Cap() - 1) - r.Size()
		if r.Size()+free != r.Cap()-1 {
			t.Fatalf("invariant broken at push %d", i)
		}
		if i%3 == 0 {
			r.Pop()
		}
	}
}

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	cases := map[int]int{0: 2, 1: 2, 3: 4, 5: 8, 100: 128}
	for in, want := range cases {
		r := New[int](in)
		if r.Cap() != want {
			t.Errorf("New(%d).Cap() = %d, want %d", in, r.Cap(), want)
		}
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	r := New[int](1024)
	const n = 100000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.Push(i) {
			}
		}
	}()

	sum := 0
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for {
				v, ok := r.Pop()
				if ok {
					sum += v
					break
				}
			}
		}
	}()

	wg.Wait()
	want := n * (n - 1) / 2
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}
}
