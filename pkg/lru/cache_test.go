package lru

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -3} {
		if _, err := New[string, int](capacity); err != ErrInvalidCapacity {
			t.Errorf("New(%d) error = %v, want ErrInvalidCapacity", capacity, err)
		}
	}
}

func TestEvictsOldestInsert(t *testing.T) {
	const n = 4
	c, err := New[string, int](n)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i <= n; i++ {
		evicted := c.Put(fmt.Sprintf("k%d", i), i)
		if want := i == n; evicted != want {
			t.Errorf("Put(k%d) evicted = %v, want %v", i, evicted, want)
		}
	}

	if c.Len() != n {
		t.Fatalf("Len() = %d, want %d", c.Len(), n)
	}
	if c.Contains("k0") {
		t.Error("oldest key k0 still present")
	}
	for i := 1; i <= n; i++ {
		if !c.Contains(fmt.Sprintf("k%d", i)) {
			t.Errorf("k%d missing", i)
		}
	}
}

func TestGetRefreshesRecency(t *testing.T) {
	c, _ := New[string, int](3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed")
	}
	c.Put("d", 4)

	if c.Contains("b") {
		t.Error("b should be evicted as least recently used")
	}
	if !c.Contains("a") {
		t.Error("a was touched and should survive")
	}
}

func TestPutExistingRefreshesRecency(t *testing.T) {
	c, _ := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)
	c.Put("c", 3)

	if c.Contains("b") {
		t.Error("b should be evicted")
	}
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d, want 10", v)
	}
}

func TestPeekDoesNotTouch(t *testing.T) {
	c, _ := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Peek("a")
	c.Put("c", 3)

	if c.Contains("a") {
		t.Error("Peek must not refresh recency")
	}
}

func TestRemoveAndEvictCallback(t *testing.T) {
	var evicted []string
	c, _ := NewWithEvict[string, int](1, func(k string, _ int) {
		evicted = append(evicted, k)
	})

	c.Put("a", 1)
	c.Put("b", 2)
	if !c.Remove("b") {
		t.Error("Remove(b) = false")
	}
	if c.Remove("b") {
		t.Error("second Remove(b) = true")
	}
	if len(evicted) != 2 || evicted[0] != "a" || evicted[1] != "b" {
		t.Errorf("evicted = %v, want [a b]", evicted)
	}
}

func TestConcurrentPut(t *testing.T) {
	c, _ := New[int, int](64)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Put(base*500+i, i)
				c.Get(i)
			}
		}(w)
	}
	wg.Wait()

	if c.Len() > c.Cap() {
		t.Errorf("Len() = %d exceeds capacity %d", c.Len(), c.Cap())
	}
}
