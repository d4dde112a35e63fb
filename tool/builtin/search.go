package builtin

import (
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/search"
	"github.com/hupe1980/studycoach/tool"
)

// SearchArgs are the arguments of the google_search tool.
type SearchArgs struct {
	Query      string `json:"query" description:"Search terms"`
	NumResults *int   `json:"num_results" description:"Number of results to return (default 3)"`
}

// WebSearch searches the web through a search provider.
func WebSearch(p search.Provider) tool.Tool {
	return tool.NewTypedTool(SearchName,
		"Search the web for information such as recent news, weather or general knowledge.",
		func(tc *core.ToolContext, args SearchArgs) (any, error) {
			results, err := p.Search(tc.Context(), args.Query, search.Options{Count: intOr(args.NumResults, search.DefaultCount)})
			if err != nil {
				return nil, err
			}
			tc.LogDebug("tool.search.results", "provider", p.Name(), "count", len(results))
			return results, nil
		})
}
