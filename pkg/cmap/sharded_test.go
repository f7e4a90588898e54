package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if len(m.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d", tt.input, len(m.shards), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("a", 1)
	m.Set("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}
	if !m.Has("b") {
		t.Error("Has(b) = false, want true")
	}

	m.Delete("a")
	if m.Has("a") {
		t.Error("Has(a) after Delete = true")
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestSetIfAbsent(t *testing.T) {
	m := New[string, int]()

	if !m.SetIfAbsent("k", 1) {
		t.Fatal("first SetIfAbsent returned false")
	}
	if m.SetIfAbsent("k", 2) {
		t.Fatal("second SetIfAbsent returned true")
	}
	if v, _ := m.Get("k"); v != 1 {
		t.Errorf("value = %d, want 1", v)
	}
}

func TestPopOnce(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 7)

	var wg sync.WaitGroup
	var mu sync.Mutex
	hits := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Pop("k"); ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if hits != 1 {
		t.Errorf("Pop succeeded %d times, want 1", hits)
	}
}

func TestCompute(t *testing.T) {
	m := New[string, int]()

	incr := func(old int, exists bool) (int, bool) { return old + 1, true }
	m.Compute("n", incr)
	m.Compute("n", incr)
	if v, _ := m.Get("n"); v != 2 {
		t.Errorf("value = %d, want 2", v)
	}

	_, keep := m.Compute("n", func(old int, exists bool) (int, bool) { return 0, false })
	if keep || m.Has("n") {
		t.Error("Compute with keep=false should delete the key")
	}
}

func TestKeysValues(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 10 || keys[0] != "k0" {
		t.Errorf("Keys() = %v", keys)
	}

	sum := 0
	for _, v := range m.Values() {
		sum += v
	}
	if sum != 45 {
		t.Errorf("sum of Values() = %d, want 45", sum)
	}
}

func TestRangeStop(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 100; i++ {
		m.Set(i, i)
	}

	seen := 0
	m.Range(func(_, _ int) bool {
		seen++
		return seen < 5
	})
	if seen != 5 {
		t.Errorf("Range visited %d entries, want 5", seen)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Set(base*1000+i, i)
				m.Values()
			}
		}(w)
	}
	wg.Wait()

	if m.Count() != 8000 {
		t.Errorf("Count() = %d, want 8000", m.Count())
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() after Clear = %d", m.Count())
	}
}
