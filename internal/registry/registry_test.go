package registry

import "testing"

func TestCreateClassIdempotentThenDuplicate(t *testing.T) {
	r := New()

	c1, d1 := r.CreateClass("Player", "GameObject")
	if d1 != nil {
		t.Fatalf("first CreateClass reported a diagnostic: %v", d1)
	}
	if c1.Name != "Player" || c1.NativeBase != "GameObject" {
		t.Fatalf("unexpected class: %+v", c1)
	}

	c2, d2 := r.CreateClass("Player", "GameObject")
	if d2 == nil {
		t.Fatal("second CreateClass for the same name did not report a duplicate-export diagnostic")
	}
	if c2 != c1 {
		t.Fatal("second CreateClass returned a different object than the first")
	}
}

func TestPrepareForReloadPreservesIdentity(t *testing.T) {
	r := New()

	c, _ := r.CreateClass("Player", "GameObject")
	fn, _ := r.CreateFunction("TakeDamage", "Player")
	c.Size = 128

	gen := r.Generation
	r.PrepareForReload()

	if r.Generation == gen {
		t.Fatal("Generation did not change across PrepareForReload")
	}

	c2, ok := r.LookupClass("Player")
	if !ok || c2 != c {
		t.Fatal("class identity was not preserved across reload")
	}
	if c2.Size != 0 {
		t.Fatalf("class size not cleared: %d", c2.Size)
	}
	if len(c2.Functions) != 0 {
		t.Fatal("class function table not cleared")
	}

	// After reload, creating the same function again must succeed (not be
	// treated as a duplicate) since the used-set was reset.
	fn2, diag := r.CreateFunction("TakeDamage", "Player")
	if diag != nil {
		t.Fatalf("re-creating a function after reload reported a spurious duplicate: %v", diag)
	}
	if fn2 != fn {
		t.Fatal("function identity was not preserved across reload")
	}
}

func TestCreateEnumAndStructIdempotent(t *testing.T) {
	r := New()

	e1, d1 := r.CreateEnum("Color", 1, false)
	if d1 != nil {
		t.Fatalf("first CreateEnum reported a diagnostic: %v", d1)
	}
	e2, d2 := r.CreateEnum("Color", 1, false)
	if d2 == nil {
		t.Fatal("expected duplicate-export diagnostic on second CreateEnum")
	}
	if e1 != e2 {
		t.Fatal("CreateEnum returned different objects for the same name")
	}

	s1, d3 := r.CreateStruct("Vector3")
	if d3 != nil {
		t.Fatalf("first CreateStruct reported a diagnostic: %v", d3)
	}
	s2, d4 := r.CreateStruct("Vector3")
	if d4 == nil {
		t.Fatal("expected duplicate-export diagnostic on second CreateStruct")
	}
	if s1 != s2 {
		t.Fatal("CreateStruct returned different objects for the same name")
	}
}
