// Package idgen centralises identifier generation so that run and execution
// IDs can be stubbed deterministically in tests.
package idgen
