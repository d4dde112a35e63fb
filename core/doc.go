// Package core provides the foundational domain types and interfaces shared by
// the orchestrator, the tool layer and the stores. It defines:
//
//   - Messages (closed union of user, assistant and tool result entries)
//   - State (the conversation threaded through one turn)
//   - ToolContext (scoped execution surface for tool implementations)
//   - MemoryStore / RetrievalStore (external similarity search capabilities)
//   - Session / SessionStore (completed exchanges replayed as prior history)
//   - CycleBudget (the per-turn THINK/ACT bound)
//   - Sentinel errors and ErrorKind classification for turn failures
//
// The package keeps implementation concerns (persistence, model
// backends, concrete tools) out of scope, exposing small interfaces to enable
// custom backends.
package core
