// Package arcflow provides a stateful workflow graph execution engine.
//
// Graphs are directed topologies of generation, tool, router and function
// nodes joined by conditioned edges.  Execution is session based: each
// invocation owns a memory store and an ordered history, can pause at
// designated nodes for external input and resume later through a named entry
// point, surviving process restarts through pluggable snapshot stores
// (in-memory, filesystem, Redis, PostgreSQL).
//
// End-users typically interact with the engine via the Service facade
// exposed by the root package:
//
//	srv := arcflow.New(arcflow.WithGenerator(generator))
//	rt := srv.Runtime()
//	g, _ := rt.LoadGraph(ctx, "support.yaml")
//	out, _ := rt.Invoke(ctx, g.ID, map[string]interface{}{"question": "..."})
//	if out.Status == execution.StatusPaused {
//		out, _ = rt.Resume(ctx, out.SessionID, out.PendingResume, answer)
//	}
//
// For more details see the individual sub-packages.
package arcflow
