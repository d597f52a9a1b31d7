// Package executor bridges step executions dequeued by the processor with
// the registered action services.  It resolves the action method, converts
// and expands the step input, invokes the method and records its output on
// the execution.
package executor
