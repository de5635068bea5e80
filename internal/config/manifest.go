package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes a build of the scripting runtime: where to find packed
// modules, and how (or whether) to invoke the AOT path.
type Manifest struct {
	// ModulePaths lists directories searched for packed ".smod" files, in
	// order. Every .smod file in every listed directory is loaded; files of
	// the same name in two directories are both loaded.
	ModulePaths []string `yaml:"modulePaths"`

	// NativeCompiler names a compiler for the AOT path. `scriptc aot` does
	// not read it: it always auto-detects (embedded compiler, then
	// "cc"/"clang"/"gcc" on PATH).
	NativeCompiler string `yaml:"nativeCompiler"`

	// EnableAOT turns on ahead-of-time translation for exported functions.
	EnableAOT bool `yaml:"enableAOT"`

	// AOTCacheDir holds the sqlite build cache (internal/aotcache). Empty
	// disables caching.
	AOTCacheDir string `yaml:"aotCacheDir"`

	// HostSnapshot points at a serialized Host Type Insight snapshot to use
	// instead of runtime reflection (cross-platform compilation).
	HostSnapshot string `yaml:"hostSnapshot"`
}

// LoadManifest reads and validates a YAML project manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(m.ModulePaths) == 0 {
		m.ModulePaths = []string{"."}
	}
	return &m, nil
}
