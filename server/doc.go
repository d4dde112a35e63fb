// Package server exposes turns and document indexing over HTTP.
//
// Routes:
//
//	GET  /ws?session=<id>  websocket; streams turn snapshots
//	POST /documents        multipart upload (field "file") indexed for rag_search
//	GET  /healthz          liveness plus retrieval index readiness
//
// Websocket clients send {"type":"message","content":"..."} to start a turn,
// {"type":"cancel"} to cancel the running one and {"type":"ping"} to check the connection.
// The server answers with "session", "snapshot", "pong" and "error" frames.
// A connection runs at most one turn at a time.
package server
