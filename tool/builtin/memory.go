package builtin

import (
	"fmt"
	"strings"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/tool"
)

// NoMemoriesMessage is returned by read_memory when nothing matches.
const NoMemoriesMessage = "No related past records were found."

// ReadMemoryArgs are the arguments of the read_memory tool.
type ReadMemoryArgs struct {
	Query string `json:"query" description:"What to recall, e.g. 'topics the user finds difficult'"`
	TopK  *int   `json:"top_k" description:"Number of memories to return (default 3)"`
}

// WriteMemoryArgs are the arguments of the write_memory tool.
type WriteMemoryArgs struct {
	Summary string   `json:"summary" description:"Summary of what should be remembered"`
	Tags    []string `json:"tags,omitempty" description:"Tags, e.g. ['learning', 'weakness', 'preference']"`
}

// ReadMemory searches long-term memory.
func ReadMemory(store core.MemoryStore) tool.Tool {
	return tool.NewTypedTool(ReadMemoryName,
		"Search the user's past learning patterns, preferences and weaknesses.",
		func(tc *core.ToolContext, args ReadMemoryArgs) (any, error) {
			mems, err := store.Search(tc.Context(), args.Query, intOr(args.TopK, 3))
			if err != nil {
				return nil, err
			}
			if len(mems) == 0 {
				return NoMemoriesMessage, nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Past records related to '%s':\n\n", args.Query)
			for i, m := range mems {
				ts, _ := m.Metadata["timestamp"].(string)
				if ts == "" {
					ts = "N/A"
				}
				fmt.Fprintf(&b, "%d. %s\n   (saved: %s)\n\n", i+1, m.Content, ts)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		})
}

// WriteMemory stores a learning record in long-term memory.
func WriteMemory(store core.MemoryStore) tool.Tool {
	return tool.NewTypedTool(WriteMemoryName,
		"Store important learning content or user traits in long-term memory.",
		func(tc *core.ToolContext, args WriteMemoryArgs) (any, error) {
			id, err := store.Write(tc.Context(), args.Summary, args.Tags)
			if err != nil {
				return nil, err
			}
			tc.LogInfo("tool.memory.written", "memory_id", id, "tags", len(args.Tags))
			return fmt.Sprintf("Memory saved (ID: %s)", id), nil
		})
}
