package eviction

import "testing"

func TestParsePolicyType(t *testing.T) {
	cases := map[string]PolicyType{"lru": LRU, " LFU ": LFU, "fifo": FIFO, "": LRU}
	for in, want := range cases {
		got, err := ParsePolicyType(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicyType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParsePolicyType("random"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	p := NewEvictionPolicy(LRU)
	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("c")
	p.OnGet("a")

	if k := p.Evict(); k != "b" {
		t.Fatalf("expected b, got %q", k)
	}
	p.Remove("c")
	if k := p.Evict(); k != "a" {
		t.Fatalf("expected a, got %q", k)
	}
	if k := p.Evict(); k != "" {
		t.Fatalf("expected empty policy, got %q", k)
	}
}

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	p := NewEvictionPolicy(LFU)
	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("c")
	p.OnGet("a")
	p.OnGet("a")
	p.OnGet("c")

	if k := p.Evict(); k != "b" {
		t.Fatalf("expected b, got %q", k)
	}
	if k := p.Evict(); k != "c" {
		t.Fatalf("expected c, got %q", k)
	}

	// minFreq goes stale once the last key of a bucket is removed
	p.OnPut("d")
	p.Remove("d")
	if k := p.Evict(); k != "a" {
		t.Fatalf("expected a, got %q", k)
	}
}

func TestLFUTieGoesToOldest(t *testing.T) {
	p := NewEvictionPolicy(LFU)
	p.OnPut("first")
	p.OnPut("second")

	if k := p.Evict(); k != "first" {
		t.Fatalf("expected first, got %q", k)
	}
}

func TestFIFOIgnoresReads(t *testing.T) {
	p := NewEvictionPolicy(FIFO)
	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a")
	p.OnPut("a")

	if k := p.Evict(); k != "a" {
		t.Fatalf("expected a, got %q", k)
	}
}

func TestReset(t *testing.T) {
	for _, typ := range []PolicyType{LRU, LFU, FIFO} {
		p := NewEvictionPolicy(typ)
		p.OnPut("a")
		p.OnPut("b")
		p.Reset()
		if k := p.Evict(); k != "" {
			t.Fatalf("%s: expected nothing after reset, got %q", typ, k)
		}
	}
}
