// Package processor hosts the workers that execute individual step
// executions.  Every worker consumes items from the queue owned by the
// allocator and updates the execution state so that the allocator can decide
// what to schedule next.  A step failure stops the run: remaining work is
// dropped and the run is marked failed.
package processor
