// Package diag implements the structured diagnostic format used across the
// load/link/translate pipeline (spec §7): every error carries a severity, a
// source location when one is known, and a kind drawn from the taxonomy.
package diag

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
)

// Kind is the error taxonomy from §7.
type Kind int

const (
	KindFormat Kind = iota
	KindLink
	KindTranslation
	KindRuntimeFault
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "format error"
	case KindLink:
		return "link error"
	case KindTranslation:
		return "translation error"
	case KindRuntimeFault:
		return "runtime fault"
	case KindResource:
		return "resource error"
	default:
		return "error"
	}
}

// Severity distinguishes hard failures from warnings (e.g. the linker's
// script-superseded-by-native demotion).
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Location pairs a depot-relative file path with a line number. A zero Line
// means "no specific line" (e.g. a whole-module format error).
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line <= 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Diagnostic is one reported problem. Link errors may carry a second
// location (the other side of an import/export mismatch, §4.5 phase 3).
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Message  string
	At       Location
	Also     *Location // secondary site, for mismatches reported at two locations
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.Severity == SeverityWarning {
		b.WriteString("warning: ")
	}
	b.WriteString(d.Kind.String())
	if loc := d.At.String(); loc != "" {
		fmt.Fprintf(&b, " at %s", loc)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	if d.Also != nil {
		if loc := d.Also.String(); loc != "" {
			fmt.Fprintf(&b, " (also see %s)", loc)
		}
	}
	return b.String()
}

// Bag accumulates diagnostics for one load/link/translate pass. Format and
// link errors abort the pass (propagation policy, §7); translation errors
// are localized to the offending function and do not set Fatal.
type Bag struct {
	diags []Diagnostic
	fatal bool
}

// Add records a diagnostic. Format and link errors at SeverityError mark the
// bag fatal; translation/runtime/resource errors never do, matching the
// localized-failure policy in §7.
func (b *Bag) Add(d Diagnostic) {
	b.diags = append(b.diags, d)
	if d.Severity == SeverityError && (d.Kind == KindFormat || d.Kind == KindLink) {
		b.fatal = true
	}
}

func (b *Bag) Errorf(kind Kind, at Location, format string, args ...interface{}) {
	b.Add(Diagnostic{Kind: kind, Severity: SeverityError, Message: fmt.Sprintf(format, args...), At: at})
}

func (b *Bag) Warnf(kind Kind, at Location, format string, args ...interface{}) {
	b.Add(Diagnostic{Kind: kind, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), At: at})
}

// Fatal reports whether any format or link error was recorded.
func (b *Bag) Fatal() bool { return b.fatal }

// Diagnostics returns all recorded diagnostics in insertion order.
func (b *Bag) Diagnostics() []Diagnostic { return append([]Diagnostic(nil), b.diags...) }

// Sorted returns diagnostics ordered by file, then line, for stable output.
func (b *Bag) Sorted() []Diagnostic {
	out := b.Diagnostics()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.File != out[j].At.File {
			return out[i].At.File < out[j].At.File
		}
		return out[i].At.Line < out[j].At.Line
	})
	return out
}

// Print writes every diagnostic to w, colorizing severity only when w is a
// real terminal -- piping output to a file or another process never gets
// ANSI escapes mixed into it.
func Print(w io.Writer, diags []Diagnostic) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, d := range diags {
		line := d.Error()
		if color {
			code := "31" // red
			if d.Severity == SeverityWarning {
				code = "33" // yellow
			}
			line = "\x1b[" + code + "m" + line + "\x1b[0m"
		}
		fmt.Fprintln(w, line)
	}
}
