package aot

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// NativeCompiler turns one generated C translation unit into a loadable
// shared object. Grounded on the original engine's scriptJitTCC.cpp, which
// tries an embedded TCC first (fast, no external toolchain needed) and
// falls back to whatever system compiler is available.
type NativeCompiler interface {
	// Name identifies the backend for diagnostics and aotcache bookkeeping.
	Name() string
	// Available reports whether this backend can run on the current host.
	Available() bool
	// Compile builds cSource (a self-contained translation unit) into a
	// shared object at outputPath.
	Compile(cSource, outputPath string) error
}

// TCCCompiler shells out to a bundled `tcc` binary, the preferred backend
// when present: it has no external dependency and compiles fast enough to
// run inline with a hot-reload.
type TCCCompiler struct {
	// BinaryPath is the path to the tcc executable. Empty means "tcc" on PATH.
	BinaryPath string
}

func (c *TCCCompiler) Name() string { return "tcc" }

func (c *TCCCompiler) bin() string {
	if c.BinaryPath != "" {
		return c.BinaryPath
	}
	return "tcc"
}

func (c *TCCCompiler) Available() bool {
	_, err := exec.LookPath(c.bin())
	return err == nil
}

func (c *TCCCompiler) Compile(cSource, outputPath string) error {
	return compileWith(c.bin(), []string{"-shared", "-o", outputPath}, cSource, outputPath)
}

// SystemCCCompiler shells out to the first of cc/clang/gcc found on PATH.
type SystemCCCompiler struct {
	// Candidates overrides the default cc/clang/gcc search order, mostly
	// for tests.
	Candidates []string
}

func (c *SystemCCCompiler) Name() string { return "cc" }

func (c *SystemCCCompiler) candidates() []string {
	if len(c.Candidates) > 0 {
		return c.Candidates
	}
	return []string{"cc", "clang", "gcc"}
}

func (c *SystemCCCompiler) resolve() (string, bool) {
	for _, name := range c.candidates() {
		if _, err := exec.LookPath(name); err == nil {
			return name, true
		}
	}
	return "", false
}

func (c *SystemCCCompiler) Available() bool {
	_, ok := c.resolve()
	return ok
}

func (c *SystemCCCompiler) Compile(cSource, outputPath string) error {
	bin, ok := c.resolve()
	if !ok {
		return fmt.Errorf("aot: no system C compiler found on PATH")
	}
	return compileWith(bin, []string{"-shared", "-fPIC", "-O2", "-o", outputPath}, cSource, outputPath)
}

func compileWith(bin string, flags []string, cSource, outputPath string) error {
	dir, err := os.MkdirTemp("", "scriptcore-aot-*")
	if err != nil {
		return fmt.Errorf("aot: creating build dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "module.c")
	if err := os.WriteFile(srcPath, []byte(cSource), 0644); err != nil {
		return fmt.Errorf("aot: writing C source: %w", err)
	}

	args := append(append([]string{}, flags...), srcPath)
	cmd := exec.Command(bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("aot: %s failed: %w\n%s", bin, err, out)
	}
	return nil
}

// SelectCompiler returns the first available backend in the original's
// preference order: TCC, then the system compiler.
func SelectCompiler(tccPath string) (NativeCompiler, error) {
	tcc := &TCCCompiler{BinaryPath: tccPath}
	if tcc.Available() {
		return tcc, nil
	}
	sys := &SystemCCCompiler{}
	if sys.Available() {
		return sys, nil
	}
	return nil, fmt.Errorf("aot: no native compiler available (tried tcc, cc, clang, gcc)")
}
