// Package gate implements the manual approval layer for gated release
// steps.  A gated step is parked by the allocator until an explicit approve
// or reject decision is recorded here.
package gate
