package simple

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Sequential(t *testing.T) {
	g := New()

	first, err := g.GetID(context.Background())
	require.NoError(t, err)
	second, err := g.GetID(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestGenerator_Concurrent(t *testing.T) {
	g := New()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{})
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, _ := g.GetID(context.Background())

			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}

	wg.Wait()
	assert.Len(t, seen, 50)
}
