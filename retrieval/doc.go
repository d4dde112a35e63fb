// Package retrieval indexes lecture material for the rag_search tool.
//
// Documents are extracted to plain text (markdown through a goldmark AST
// walk), split into overlapping chunks by Splitter and embedded into a
// vector collection through Store, which implements core.RetrievalStore.
package retrieval
