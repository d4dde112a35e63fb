// Package session houses concrete implementations of core.SessionStore.
// Sessions keep the learner-visible transcript (input and final answer per
// turn) that seeds the prior history of the next turn.
package session
