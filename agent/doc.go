// Package agent implements the turn orchestrator: a finite state loop that
// alternates between reasoning (THINK) and tool execution (ACT) until the
// model stops requesting tools, then runs a fire-and-forget reflection step
// (REFLECT) before terminating (DONE).
//
// The Orchestrator is an explicit value built once with New and shared by
// whatever serves turns. Each step returns a delta that the loop appends to
// the per-turn core.State; the routing decision is the pure function Route.
//
// RunTurn exposes a turn as a lazy, pull-based iter.Seq of cumulative
// content snapshots. Cancellation is checked at the top of every transition.
package agent
