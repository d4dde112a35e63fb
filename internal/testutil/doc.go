// Package testutil contains helper builders used across tests to construct
// conversations and tool calls with little boilerplate. They are not intended
// for production usage.
package testutil
