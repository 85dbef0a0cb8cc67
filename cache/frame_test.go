package cache

import (
	"errors"
	"testing"
)

func TestFrameCacheGetPut(t *testing.T) {
	c := NewFrame[string](DefaultFrameConfig())

	if err := c.Put(1, "one"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	v, ok := c.Get(1)
	if !ok {
		t.Fatal("expected key 1 to exist")
	}
	if v != "one" {
		t.Errorf("expected %q, got %q", "one", v)
	}

	_, ok = c.Get(2)
	if ok {
		t.Error("expected key 2 to not exist")
	}
}

func TestFrameCacheDefaults(t *testing.T) {
	c := NewFrame[int](FrameConfig{})

	cfg := c.Config()
	if cfg.Lifetime != DefaultLifetime {
		t.Errorf("expected lifetime %d, got %d", DefaultLifetime, cfg.Lifetime)
	}
	if cfg.EmergencyLifetime != DefaultEmergencyLifetime {
		t.Errorf("expected emergency lifetime %d, got %d", DefaultEmergencyLifetime, cfg.EmergencyLifetime)
	}
	if cfg.Capacity != DefaultFrameCapacity {
		t.Errorf("expected capacity %d, got %d", DefaultFrameCapacity, cfg.Capacity)
	}
}

func TestFrameCacheCycleEviction(t *testing.T) {
	c := NewFrame[int](FrameConfig{Lifetime: 3, EmergencyLifetime: 2, Capacity: 16})

	if err := c.Put(1, 100); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Entry survives until its age reaches the lifetime.
	c.Cycle() // age 1
	c.Cycle() // age 2
	if _, ok := c.Get(1); !ok {
		t.Fatal("entry evicted before lifetime")
	}

	// Get reset the age, so the clock restarts.
	c.Cycle() // age 1
	c.Cycle() // age 2
	c.Cycle() // age 3
	c.Cycle() // age 3 >= lifetime, evicted
	if _, ok := c.Get(1); ok {
		t.Error("entry survived past lifetime without a hit")
	}
}

func TestFrameCacheGetResetsAge(t *testing.T) {
	c := NewFrame[int](FrameConfig{Lifetime: 2, EmergencyLifetime: 1, Capacity: 16})

	if err := c.Put(1, 100); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Hit every frame: the entry must never age out.
	for i := 0; i < 10; i++ {
		c.Cycle()
		if _, ok := c.Get(1); !ok {
			t.Fatalf("entry evicted on frame %d despite per-frame hits", i)
		}
	}
}

func TestFrameCacheSaturation(t *testing.T) {
	c := NewFrame[int](FrameConfig{Lifetime: 50, EmergencyLifetime: 8, Capacity: 4})

	// Fill to capacity with fresh entries.
	for i := uint64(0); i < 4; i++ {
		if err := c.Put(i, int(i)); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
	}

	// All entries have age 0, so the emergency sweep frees nothing.
	err := c.Put(99, 99)
	if !errors.Is(err, ErrSaturated) {
		t.Fatalf("expected ErrSaturated, got %v", err)
	}
	if c.Len() != 4 {
		t.Errorf("expected 4 entries after failed Put, got %d", c.Len())
	}

	// Replacing an existing key is not an insertion and must succeed.
	if err := c.Put(2, 200); err != nil {
		t.Errorf("replacing existing key failed: %v", err)
	}
}

func TestFrameCacheEmergencySweep(t *testing.T) {
	c := NewFrame[int](FrameConfig{Lifetime: 50, EmergencyLifetime: 2, Capacity: 4})

	for i := uint64(0); i < 4; i++ {
		if err := c.Put(i, int(i)); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
	}

	// Age everyone past the emergency bound but keep key 0 fresh.
	c.Cycle()
	c.Cycle()
	if _, ok := c.Get(0); !ok {
		t.Fatal("expected key 0 to exist")
	}

	// The sweep must evict the aged entries and admit the new one.
	if err := c.Put(99, 99); err != nil {
		t.Fatalf("expected emergency sweep to make room, got %v", err)
	}
	if _, ok := c.Get(0); !ok {
		t.Error("fresh entry evicted by emergency sweep")
	}
	if _, ok := c.Get(99); !ok {
		t.Error("new entry missing after emergency sweep")
	}
	if _, ok := c.Get(1); ok {
		t.Error("aged entry survived emergency sweep")
	}
}

func TestFrameCacheEvictCallback(t *testing.T) {
	c := NewFrame[int](FrameConfig{Lifetime: 1, EmergencyLifetime: 1, Capacity: 16})

	var evicted []int
	c.SetEvictFunc(func(v int) { evicted = append(evicted, v) })

	if err := c.Put(1, 100); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Put(1, 101); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != 100 {
		t.Errorf("expected replaced value 100 reported, got %v", evicted)
	}

	c.Cycle() // ages to 1
	c.Cycle() // evicts at lifetime 1
	if len(evicted) != 2 || evicted[1] != 101 {
		t.Errorf("expected cycled-out value 101 reported, got %v", evicted)
	}

	if err := c.Put(2, 200); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	c.Clear()
	if len(evicted) != 3 || evicted[2] != 200 {
		t.Errorf("expected cleared value 200 reported, got %v", evicted)
	}
}

func TestFrameCacheClear(t *testing.T) {
	c := NewFrame[int](DefaultFrameConfig())

	for i := uint64(0); i < 8; i++ {
		if err := c.Put(i, int(i)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if c.Len() != 8 {
		t.Errorf("expected 8 entries, got %d", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear, got %d", c.Len())
	}
}
