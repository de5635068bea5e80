package aotcache

import "testing"

func TestPutLookupRoundTrip(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	entry := Entry{
		CodeHash:   0xdeadbeef,
		Qualified:  "Foo.bar",
		CSource:    "ScRtValue Foo_bar(void*, ScRtValue*, int) { return sc_rt_void(); }",
		ObjectPath: "/tmp/foo.so",
		Compiler:   "cc",
		CreatedAt:  1700000000,
	}
	if err := c.Put(entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Lookup(entry.CodeHash)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatalf("Lookup: expected a hit for %x", entry.CodeHash)
	}
	if got != entry {
		t.Fatalf("Lookup: got %+v, want %+v", got, entry)
	}
}

func TestLookupMiss(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	_, ok, err := c.Lookup(0x1)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatalf("Lookup: expected a miss on an empty cache")
	}
}

func TestPutOverwritesSameHash(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	first := Entry{CodeHash: 7, Qualified: "A.f", CSource: "v1", ObjectPath: "/tmp/a.so", Compiler: "cc", CreatedAt: 1}
	second := Entry{CodeHash: 7, Qualified: "A.f", CSource: "v2", ObjectPath: "/tmp/a2.so", Compiler: "tcc", CreatedAt: 2}
	if err := c.Put(first); err != nil {
		t.Fatalf("Put first: %v", err)
	}
	if err := c.Put(second); err != nil {
		t.Fatalf("Put second: %v", err)
	}

	got, ok, err := c.Lookup(7)
	if err != nil || !ok {
		t.Fatalf("Lookup: got ok=%v err=%v", ok, err)
	}
	if got != second {
		t.Fatalf("Lookup: got %+v, want %+v (overwrite expected)", got, second)
	}
}

func TestInvalidate(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Put(Entry{CodeHash: 42, Qualified: "X.y", CSource: "v", ObjectPath: "/tmp/x.so", Compiler: "cc"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Invalidate(42); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, ok, err := c.Lookup(42)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatalf("Lookup: expected a miss after Invalidate")
	}
}
