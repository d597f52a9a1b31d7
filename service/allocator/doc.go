// Package allocator advances runs by deciding which step execution is ready
// next: it resolves dependency order, evaluates when-conditions, parks gated
// steps until a decision arrives and publishes ready executions onto the
// processor queue.
package allocator
