package hosttype

import (
	"reflect"
	"testing"
)

type vec3 struct {
	X, Y, Z float32
}

func TestReflectInsightStruct(t *testing.T) {
	r := NewReflectInsight()
	info := r.Register("engine.Vec3", reflect.TypeOf(vec3{}), "")

	if info.Meta != MetaClass {
		t.Fatalf("Meta = %v, want MetaClass", info.Meta)
	}
	if len(info.Members) != 3 {
		t.Fatalf("Members = %v, want 3 entries", info.Members)
	}
	if !info.Traits.SimpleCopyCompare {
		t.Fatalf("expected an all-float32 struct to be simple-copy-compare")
	}

	got, ok := r.Lookup("engine.Vec3")
	if !ok || got != info {
		t.Fatalf("Lookup(engine.Vec3) = %v, %v", got, ok)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	infos := []*TypeInfo{
		{
			Name:  "engine.Vec3",
			Meta:  MetaClass,
			Size:  12,
			Align: 4,
			Traits: Traits{
				SimpleCopyCompare:   true,
				ZeroInitConstructor: true,
			},
			Members: []Member{
				{Name: "X", TypeName: "float32", Offset: 0},
				{Name: "Y", TypeName: "float32", Offset: 4},
				{Name: "Z", TypeName: "float32", Offset: 8},
			},
		},
		{
			Name:  "engine.Severity",
			Meta:  MetaEnum,
			Size:  1,
			Align: 1,
			EnumOptions: []EnumOption{
				{Name: "Info", Value: 0},
				{Name: "Warning", Value: 1},
				{Name: "Error", Value: 2},
			},
		},
	}

	data, err := EncodeSnapshot(infos)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}

	vec, ok := snap.Lookup("engine.Vec3")
	if !ok {
		t.Fatalf("expected engine.Vec3 in snapshot")
	}
	if len(vec.Members) != 3 || vec.Members[2].Offset != 8 {
		t.Fatalf("Vec3 members = %+v", vec.Members)
	}

	sev, ok := snap.Lookup("engine.Severity")
	if !ok || len(sev.EnumOptions) != 3 || sev.EnumOptions[2].Value != 2 {
		t.Fatalf("Severity enum = %+v, %v", sev, ok)
	}
}
