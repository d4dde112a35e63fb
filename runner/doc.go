// Package runner serves turns on behalf of transports.
//
// The Runner owns an agent.Orchestrator and a core.SessionStore. It rebuilds
// the prior history of a session, hands out a run id per turn so an
// in-flight turn can be cancelled, and records the exchange once a turn
// completes successfully.
//
// # Responsibilities
//   - Turn invocation (lazy snapshot sequence plus a drained helper)
//   - Session transcript persistence
//   - Run lifecycle management and cancellation
package runner
