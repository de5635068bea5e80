// Package config holds process-wide constants and the project manifest
// format used to drive a build (module search paths, native compiler choice,
// AOT settings).
package config

// Version is the current runtime version, set at build time via -ldflags.
var Version = "0.1.0"

// PackedModuleExt is the recognized extension for packed stub-graph files.
const PackedModuleExt = ".smod"

// MaxStubCount is the largest stub table this build will unpack without a
// format error (§6: a 32-bit count field, but we refuse absurd values early).
const MaxStubCount = 1 << 24

// MaxNameOrStringCount bounds the 16-bit name/string table counts from §6.
const MaxNameOrStringCount = 1 << 16

// PointerMapCapacity is the size of a 16-bit host-pointer index table (§9
// open question: a 65536-entry table). The interpreter in this module holds
// host objects as Go interface values and keeps no such table, so nothing
// reads this constant.
const PointerMapCapacity = 1 << 16

// MaxJumpDelta is the largest signed jump delta the code block builder may
// emit (§4.6: a function whose jump exceeds this must be split).
const MaxJumpDelta = 32767
const MinJumpDelta = -32768

// IsTestMode indicates the process is running under `go test`. No package
// in this module reads it.
var IsTestMode = false
