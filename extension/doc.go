// Package extension provides the run-time registries that make release
// pipelines extensible: action services keyed by name and Go types
// addressable from release definitions.
//
// The registries are normally populated through the public APIs of the root
// tagship package, so most applications do not import this package directly.
package extension
