package vectorstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Collection = (*InMemory)(nil)

func TestInMemory_AddQuery(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory("docs")
	require.NoError(t, c.Add(ctx,
		Record{ID: "x", Content: "along x", Vector: []float32{1, 0}, Metadata: map[string]any{"source": "a.md"}},
		Record{ID: "y", Content: "along y", Vector: []float32{0, 1}},
		Record{ID: "xy", Content: "diagonal", Vector: []float32{1, 1}},
	))

	res, err := c.Query(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "x", res[0].ID)
	assert.Equal(t, "xy", res[1].ID)
	assert.Equal(t, "a.md", res[0].Metadata["source"])
	assert.Greater(t, res[0].Score, res[1].Score)

	// returned metadata is a copy
	res[0].Metadata["source"] = "changed"
	again, _ := c.Query(ctx, []float32{1, 0}, 1)
	assert.Equal(t, "a.md", again[0].Metadata["source"])

	n, _ := c.Count(ctx)
	assert.Equal(t, 3, n)
}

func TestInMemory_ReplaceDeleteClear(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory("docs")
	require.NoError(t, c.Add(ctx, Record{ID: "a", Content: "v1", Vector: []float32{1, 0}}))
	require.NoError(t, c.Add(ctx, Record{ID: "a", Content: "v2", Vector: []float32{1, 0}}))
	require.NoError(t, c.Add(ctx, Record{Content: "generated id", Vector: []float32{0, 1}}))

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "v2", list[0].Content)
	assert.NotEmpty(t, list[1].ID)

	require.NoError(t, c.Delete(ctx, "a", "missing"))
	n, _ := c.Count(ctx)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Clear(ctx))
	n, _ = c.Count(ctx)
	assert.Equal(t, 0, n)

	// dimension resets once empty
	require.NoError(t, c.Add(ctx, Record{ID: "b", Vector: []float32{1, 2, 3}}))
}

func TestInMemory_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory("docs")
	require.NoError(t, c.Add(ctx, Record{ID: "a", Vector: []float32{1, 0}}))
	err := c.Add(ctx, Record{ID: "b", Vector: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestInMemory_QueryEdgeCases(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory("docs")
	res, err := c.Query(ctx, []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, c.Add(ctx, Record{ID: "a", Vector: []float32{1}}))
	res, err = c.Query(ctx, []float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Query(cancelled, []float32{1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory("docs")
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := c.Add(ctx, Record{Vector: []float32{float32(i), 1}}); err != nil {
				t.Errorf("add: %v", err)
			}
			if _, err := c.Query(ctx, []float32{1, 1}, 5); err != nil {
				t.Errorf("query: %v", err)
			}
		}(i)
	}
	wg.Wait()
	n, _ := c.Count(ctx)
	assert.Equal(t, 25, n)
}
