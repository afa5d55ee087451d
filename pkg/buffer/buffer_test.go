package buffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collabwire/collabwire.go/pkg/clock"
	"github.com/collabwire/collabwire.go/pkg/types"
)

func change(id string) types.CodeChange {
	return types.CodeChange{ID: id, Operation: types.OpInsert, File: "main.go"}
}

func TestDebounceCoalescesIntoOneOrderedBatch(t *testing.T) {
	clk := clock.NewMock()

	var batches [][]types.CodeChange
	b := NewBatcher(clk, 50*time.Millisecond, func(batch []types.CodeChange) {
		batches = append(batches, batch)
	})

	b.Push(change("c1"))
	b.Push(change("c2"))
	b.Push(change("c3"))
	require.Empty(t, batches)

	clk.Advance(50 * time.Millisecond)

	require.Len(t, batches, 1)
	require.Equal(t, []string{"c1", "c2", "c3"}, ids(batches[0]))
	require.Equal(t, 0, b.Len())
}

func TestFlushForcesImmediateSend(t *testing.T) {
	clk := clock.NewMock()

	var batches [][]types.CodeChange
	b := NewBatcher(clk, 50*time.Millisecond, func(batch []types.CodeChange) {
		batches = append(batches, batch)
	})

	b.Push(change("c1"))
	b.Push(change("c2"))
	b.Flush()

	require.Len(t, batches, 1)
	require.Equal(t, []string{"c1", "c2"}, ids(batches[0]))

	// The debounce timer was cancelled; nothing fires later.
	clk.Advance(time.Second)
	require.Len(t, batches, 1)
}

func TestFlushOnEmptyQueueIsNoop(t *testing.T) {
	clk := clock.NewMock()

	calls := 0
	b := NewBatcher(clk, 50*time.Millisecond, func([]types.CodeChange) { calls++ })

	b.Flush()
	require.Equal(t, 0, calls)
}

func TestSeparateWindowsSeparateBatches(t *testing.T) {
	clk := clock.NewMock()

	var batches [][]types.CodeChange
	b := NewBatcher(clk, 50*time.Millisecond, func(batch []types.CodeChange) {
		batches = append(batches, batch)
	})

	b.Push(change("c1"))
	clk.Advance(50 * time.Millisecond)

	b.Push(change("c2"))
	clk.Advance(50 * time.Millisecond)

	require.Len(t, batches, 2)
	require.Equal(t, []string{"c1"}, ids(batches[0]))
	require.Equal(t, []string{"c2"}, ids(batches[1]))
}

func TestCloseDropsQueueAndTimer(t *testing.T) {
	clk := clock.NewMock()

	calls := 0
	b := NewBatcher(clk, 50*time.Millisecond, func([]types.CodeChange) { calls++ })

	b.Push(change("c1"))
	b.Close()

	clk.Advance(time.Second)
	require.Equal(t, 0, calls)

	b.Push(change("c2"))
	require.Equal(t, 0, b.Len())
}

func ids(batch []types.CodeChange) []string {
	out := make([]string, len(batch))
	for i, c := range batch {
		out[i] = c.ID
	}
	return out
}
