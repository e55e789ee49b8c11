package useragent

import (
	"sync"
	"testing"
)

func TestPool_GetSequential(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})
	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.GetSequential(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_DefaultAndBlankEntries(t *testing.T) {
	p := NewPool([]string{"", "  "})
	if p.Len() != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), p.Len())
	}
	if got := p.GetSequential(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}

	p = NewPool([]string{" custom/1.0 ", ""})
	if all := p.GetAll(); len(all) != 1 || all[0] != "custom/1.0" {
		t.Errorf("expected trimmed single agent, got %v", all)
	}
}

func TestPool_GetRandom(t *testing.T) {
	p := NewPool([]string{"A", "B"})
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got := p.GetRandom()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}
	if len(seen) != 2 {
		t.Errorf("expected both agents to be picked, saw %v", seen)
	}
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool([]string{"X", "Y", "Z"})

	const routines, iterations = 50, 300
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[string]int{}
			for j := 0; j < iterations; j++ {
				local[p.GetSequential()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	want := routines * iterations / 3
	for k, got := range counts {
		if got != want {
			t.Errorf("expected %d hits for %s, got %d", want, k, got)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{}
	if got := p.GetSequential(); got != "" {
		t.Errorf("expected empty string, got %s", got)
	}
	if got := p.GetRandom(); got != "" {
		t.Errorf("expected empty string, got %s", got)
	}
}
