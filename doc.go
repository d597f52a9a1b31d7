// Package tagship provides a tag-triggered release pipeline engine.
//
// A release is defined declaratively (typically in YAML) with a trigger,
// permissions and a step pipeline; pushing a matching tag dispatches a run
// that checks the repository out, exchanges a workload identity token for a
// registry publish token and publishes the package with that token in its
// process environment. The engine ships with pluggable service layers:
//
//   - runtime: orchestration of release runs
//   - allocator: step allocation and state management
//   - executor: step execution through action services
//   - gate: optional manual approval before sensitive steps
//
// Tagship is designed to be embedded in host applications. End-users
// typically interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv := tagship.New()
//	rt  := srv.Runtime()
//	rel, _ := rt.LoadRelease(ctx, "publish.yaml")
//	_, wait, _ := rt.StartRun(ctx, rel, nil, nil)
//	out, _ := wait(ctx, time.Minute)
//
// For more details see the README and individual sub-packages.
package tagship
