package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestLoadManifestDefaultsModulePaths(t *testing.T) {
	path := writeManifest(t, "enableAOT: true\n")
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.ModulePaths) != 1 || m.ModulePaths[0] != "." {
		t.Fatalf("ModulePaths = %v, want [.]", m.ModulePaths)
	}
	if !m.EnableAOT {
		t.Fatalf("EnableAOT = false, want true")
	}
}

func TestLoadManifestParsesAllFields(t *testing.T) {
	path := writeManifest(t, `
modulePaths:
  - build/modules
  - vendor/modules
nativeCompiler: tcc
enableAOT: true
aotCacheDir: build/aotcache
hostSnapshot: build/host.snapshot
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(m.ModulePaths) != 2 || m.ModulePaths[0] != "build/modules" || m.ModulePaths[1] != "vendor/modules" {
		t.Fatalf("ModulePaths = %v", m.ModulePaths)
	}
	if m.NativeCompiler != "tcc" {
		t.Fatalf("NativeCompiler = %q, want tcc", m.NativeCompiler)
	}
	if m.AOTCacheDir != "build/aotcache" {
		t.Fatalf("AOTCacheDir = %q", m.AOTCacheDir)
	}
	if m.HostSnapshot != "build/host.snapshot" {
		t.Fatalf("HostSnapshot = %q", m.HostSnapshot)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing manifest file")
	}
}

func TestLoadManifestInvalidYAML(t *testing.T) {
	path := writeManifest(t, "modulePaths: [unterminated\n")
	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
