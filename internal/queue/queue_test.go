package queue

import (
	"sync"
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	for want := 1; want <= 3; want++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("expected item %d, queue empty", want)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected empty queue after draining")
	}
}

func TestQueuePopN(t *testing.T) {
	q := New[string]()
	q.Push("a", "b", "c", "d", "e")

	batch := q.PopN(3)
	if len(batch) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(batch))
	}
	if batch[0] != "a" || batch[2] != "c" {
		t.Errorf("batch out of order: %v", batch)
	}
	if q.Len() != 2 {
		t.Errorf("expected 2 items left, got %d", q.Len())
	}

	// Asking past the end drains what is there.
	batch = q.PopN(10)
	if len(batch) != 2 {
		t.Errorf("expected remaining 2 items, got %d", len(batch))
	}
	if q.PopN(5) != nil {
		t.Error("expected nil batch from empty queue")
	}
	if q.PopN(0) != nil {
		t.Error("expected nil batch for max 0")
	}
}

func TestQueueClear(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	q.Clear()
	if !q.Empty() {
		t.Error("expected empty after Clear")
	}
}

func TestQueueFilter(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3, 4, 5)
	q.Filter(func(v int) bool { return v%2 == 0 })
	if q.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", q.Len())
	}
	got, _ := q.Pop()
	if got != 2 {
		t.Errorf("expected 2 first, got %d", got)
	}
}

func TestQueueConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
			}
		}()
	}
	wg.Wait()
	if q.Len() != 1600 {
		t.Errorf("expected 1600 items, got %d", q.Len())
	}
}
