package diag

import (
	"strings"
	"testing"
)

func TestLocationString(t *testing.T) {
	cases := []struct {
		loc  Location
		want string
	}{
		{Location{}, ""},
		{Location{File: "a.script"}, "a.script"},
		{Location{File: "a.script", Line: 12}, "a.script:12"},
	}
	for _, c := range cases {
		if got := c.loc.String(); got != c.want {
			t.Errorf("Location(%+v).String() = %q, want %q", c.loc, got, c.want)
		}
	}
}

func TestDiagnosticErrorIncludesLocationAndAlso(t *testing.T) {
	d := Diagnostic{
		Kind:     KindLink,
		Severity: SeverityError,
		Message:  "duplicate export foo",
		At:       Location{File: "a.script", Line: 1},
		Also:     &Location{File: "b.script", Line: 2},
	}
	got := d.Error()
	for _, want := range []string{"link error", "a.script:1", "duplicate export foo", "b.script:2"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

func TestDiagnosticErrorWarningPrefix(t *testing.T) {
	d := Diagnostic{Kind: KindLink, Severity: SeverityWarning, Message: "script superseded by native"}
	if !strings.HasPrefix(d.Error(), "warning: ") {
		t.Fatalf("Error() = %q, want warning: prefix", d.Error())
	}
}

func TestBagFatalOnlyForFormatAndLinkErrors(t *testing.T) {
	var b Bag
	b.Add(Diagnostic{Kind: KindRuntimeFault, Severity: SeverityError, Message: "boom"})
	if b.Fatal() {
		t.Fatal("runtime fault should not mark the bag fatal")
	}
	b.Add(Diagnostic{Kind: KindLink, Severity: SeverityError, Message: "missing import"})
	if !b.Fatal() {
		t.Fatal("link error should mark the bag fatal")
	}
}

func TestBagFatalIgnoresWarnings(t *testing.T) {
	var b Bag
	b.Warnf(KindLink, Location{}, "demoted to native")
	if b.Fatal() {
		t.Fatal("a warning should never mark the bag fatal")
	}
}

func TestBagSortedOrdersByFileThenLine(t *testing.T) {
	var b Bag
	b.Errorf(KindFormat, Location{File: "b.script", Line: 5}, "bad header")
	b.Errorf(KindFormat, Location{File: "a.script", Line: 9}, "bad header")
	b.Errorf(KindFormat, Location{File: "a.script", Line: 2}, "bad header")

	sorted := b.Sorted()
	if len(sorted) != 3 {
		t.Fatalf("len(Sorted()) = %d, want 3", len(sorted))
	}
	if sorted[0].At.File != "a.script" || sorted[0].At.Line != 2 {
		t.Fatalf("sorted[0] = %+v", sorted[0])
	}
	if sorted[1].At.File != "a.script" || sorted[1].At.Line != 9 {
		t.Fatalf("sorted[1] = %+v", sorted[1])
	}
	if sorted[2].At.File != "b.script" {
		t.Fatalf("sorted[2] = %+v", sorted[2])
	}
}

func TestBagDiagnosticsReturnsACopy(t *testing.T) {
	var b Bag
	b.Errorf(KindFormat, Location{}, "x")
	got := b.Diagnostics()
	got[0].Message = "mutated"
	if b.Diagnostics()[0].Message != "x" {
		t.Fatal("Diagnostics() must return an independent copy")
	}
}
