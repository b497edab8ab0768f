package data

import "testing"

func TestIndexCacheExhaust(t *testing.T) {
	c := NewIndexCache(CacheModeExhaust)
	key := CacheKey("SPX", "2025-06-13", "alice")

	for want := 0; want < 3; want++ {
		idx, done := c.GetAndAdvance(key, 3)
		if done || idx != want {
			t.Fatalf("step %d: got (%d, %v)", want, idx, done)
		}
	}
	if _, done := c.GetAndAdvance(key, 3); !done {
		t.Error("expected exhausted cursor")
	}
}

func TestIndexCacheRotation(t *testing.T) {
	c := NewIndexCache(ParseCacheMode("Rotation"))
	key := CacheKey("SPX", "2025-06-13", "alice")

	var got []int
	for i := 0; i < 5; i++ {
		idx, done := c.GetAndAdvance(key, 2)
		if done {
			t.Fatal("rotation never exhausts")
		}
		got = append(got, idx)
	}
	want := []int{0, 1, 0, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIndexCacheEmptySession(t *testing.T) {
	c := NewIndexCache(CacheModeRotation)
	if _, done := c.GetAndAdvance("k", 0); !done {
		t.Error("empty session must report exhausted")
	}
}

func TestIndexCacheReset(t *testing.T) {
	c := NewIndexCache(CacheModeExhaust)
	a := CacheKey("SPX", "2025-06-13", "alice")
	b := CacheKey("SPX", "2025-06-13", "bob")
	c.GetAndAdvance(a, 10)
	c.GetAndAdvance(b, 10)

	if n := c.Reset("alice"); n != 1 {
		t.Errorf("Reset(alice) = %d, want 1", n)
	}
	if c.GetIndex(a) != 0 || c.GetIndex(b) != 1 {
		t.Errorf("unexpected indexes a=%d b=%d", c.GetIndex(a), c.GetIndex(b))
	}
	if n := c.Reset(""); n != 1 {
		t.Errorf("Reset(all) = %d, want 1", n)
	}
}

func TestParseCacheModeDefault(t *testing.T) {
	if ParseCacheMode("bogus") != CacheModeExhaust {
		t.Error("unknown mode should fall back to exhaust")
	}
}
