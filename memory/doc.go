// Package memory implements core.MemoryStore over a vector collection.
//
// Each learning record is embedded on write and stored with a "timestamp"
// (RFC 3339) and optional "tags" metadata. Search ranks records by cosine
// similarity to the embedded query; Recent orders them by timestamp.
package memory
