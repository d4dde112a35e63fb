package builtin

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/tool"
)

// snippetLength is counted in grapheme clusters.
const snippetLength = 200

// NoDocumentsMessage is returned by rag_search when nothing matches.
const NoDocumentsMessage = "No related lecture material was found. Please upload a document first."

// RAGArgs are the arguments of the rag_search tool.
type RAGArgs struct {
	Query string `json:"query" description:"What to look for in the indexed lecture material"`
	TopK  *int   `json:"top_k" description:"Number of results to return (default 3)"`
}

// RAGSearch searches indexed lecture material.
func RAGSearch(store core.RetrievalStore) tool.Tool {
	return tool.NewTypedTool(RAGName,
		"Search the indexed lecture material for relevant passages.",
		func(tc *core.ToolContext, args RAGArgs) (any, error) {
			docs, err := store.Search(tc.Context(), args.Query, intOr(args.TopK, 3))
			if err != nil {
				return nil, err
			}
			if len(docs) == 0 {
				return NoDocumentsMessage, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Lecture material related to '%s':\n\n", args.Query)
			for i, d := range docs {
				source, _ := d.Metadata["source"].(string)
				if source == "" {
					source = "unknown"
				}
				fmt.Fprintf(&b, "%d. %s\n   (source: %s)\n\n", i+1, truncateGraphemes(d.Content, snippetLength), source)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		})
}

// truncateGraphemes keeps the first n user-perceived characters of s, so a
// base letter is never separated from its combining marks.
func truncateGraphemes(s string, n int) string {
	rest, state, cut := s, -1, 0
	for i := 0; i < n; i++ {
		if rest == "" {
			return s
		}
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		cut += len(cluster)
	}
	if rest == "" {
		return s
	}
	return s[:cut] + "..."
}
