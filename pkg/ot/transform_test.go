package ot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collabwire/collabwire.go/pkg/types"
)

func insertAt(line, col int, text string) types.CodeChange {
	return types.CodeChange{
		Operation:   types.OpInsert,
		File:        "main.go",
		StartLine:   line,
		StartColumn: col,
		EndLine:     line,
		EndColumn:   col,
		Text:        text,
	}
}

func deleteLines(startLine, endLine int) types.CodeChange {
	return types.CodeChange{
		Operation: types.OpDelete,
		File:      "main.go",
		StartLine: startLine,
		EndLine:   endLine,
	}
}

// applyToLine plays single-line inserts onto a string so convergence can be
// checked on actual text, not just coordinates.
func applyToLine(line string, c types.CodeChange) string {
	return line[:c.StartColumn] + c.Text + line[c.StartColumn:]
}

func TestTransformIdempotence(t *testing.T) {
	change := insertAt(3, 7, "x")
	require.Equal(t, change, Transform(change, nil))
	require.Equal(t, change, Transform(change, []types.CodeChange{}))
}

func TestInsertInsertColumnShift(t *testing.T) {
	pending := insertAt(1, 0, "hello")
	incoming := insertAt(1, 3, "x")

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, 8, got.StartColumn)
	require.Equal(t, 1, got.StartLine)
}

func TestInsertInsertIncomingPrecedesUnchanged(t *testing.T) {
	pending := insertAt(1, 5, "hello")
	incoming := insertAt(1, 3, "x")

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, incoming, got)
}

// Same-position inserts both shift: neither strictly precedes the other,
// so opposite arrival orders interleave the two texts differently. Pins
// the boundary documented in the package comment.
func TestInsertInsertSamePositionBothShift(t *testing.T) {
	a := insertAt(1, 3, "ab")
	b := insertAt(1, 3, "xy")

	aAfterB := Transform(a, []types.CodeChange{b})
	bAfterA := Transform(b, []types.CodeChange{a})
	require.Equal(t, 5, aAfterB.StartColumn)
	require.Equal(t, 5, bAfterA.StartColumn)

	base := "0123456789"
	replica1 := applyToLine(applyToLine(base, a), bAfterA)
	replica2 := applyToLine(applyToLine(base, b), aAfterB)
	require.Equal(t, "012abxy3456789", replica1)
	require.Equal(t, "012xyab3456789", replica2)
	require.NotEqual(t, replica1, replica2)
}

func TestInsertInsertMultiLineShift(t *testing.T) {
	pending := insertAt(2, 0, "a\nb\nc\n")
	incoming := insertAt(5, 4, "x")

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, 8, got.StartLine)
	require.Equal(t, 4, got.StartColumn)
}

func TestConvergenceOppositeArrivalOrders(t *testing.T) {
	base := "0123456789"
	a := insertAt(1, 0, "abc")
	b := insertAt(1, 5, "xy")

	// Replica one: a applied locally, b arrives and transforms against [a].
	bOnOne := Transform(b, []types.CodeChange{a})
	one := applyToLine(applyToLine(base, a), bOnOne)

	// Replica two: b applied locally, a arrives and transforms against [b].
	aOnTwo := Transform(a, []types.CodeChange{b})
	two := applyToLine(applyToLine(base, b), aOnTwo)

	require.Equal(t, one, two)
	require.Equal(t, "abc01234xy56789", one)
}

func TestInsertShiftsUpPastPendingDelete(t *testing.T) {
	pending := deleteLines(2, 4)
	incoming := insertAt(10, 0, "x")

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, 8, got.StartLine)
}

func TestInsertBeforePendingDeleteUnchanged(t *testing.T) {
	pending := deleteLines(5, 7)
	incoming := insertAt(2, 0, "x")

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, incoming, got)
}

func TestDeleteShiftsDownPastPendingInsert(t *testing.T) {
	pending := insertAt(1, 0, "a\nb\n")
	incoming := deleteLines(4, 6)

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, 6, got.StartLine)
	require.Equal(t, 8, got.EndLine)
}

func TestDeleteDeleteOverlapMergesToUnion(t *testing.T) {
	pending := deleteLines(2, 4)
	incoming := deleteLines(3, 5)

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, 2, got.StartLine)
	require.Equal(t, 5, got.EndLine)
}

func TestDeleteDeleteDisjointUnchanged(t *testing.T) {
	pending := deleteLines(2, 3)
	incoming := deleteLines(7, 9)

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, incoming, got)
}

func TestPendingAppliedInArrivalOrder(t *testing.T) {
	first := insertAt(1, 0, "aa")
	second := insertAt(1, 0, "bbb")
	incoming := insertAt(1, 4, "x")

	got := Transform(incoming, []types.CodeChange{first, second})
	require.Equal(t, 4+2+3, got.StartColumn)
}

func TestOtherFileUntouched(t *testing.T) {
	pending := insertAt(1, 0, "hello")
	pending.File = "other.go"
	incoming := insertAt(1, 3, "x")

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, incoming, got)
}

func TestReplacePassesThrough(t *testing.T) {
	pending := types.CodeChange{
		Operation: types.OpReplace,
		File:      "main.go",
		StartLine: 1, EndLine: 1,
		Text: "new", OriginalText: "old",
	}
	incoming := insertAt(1, 3, "x")

	got := Transform(incoming, []types.CodeChange{pending})
	require.Equal(t, incoming, got)
}

func TestLinesOverlap(t *testing.T) {
	require.True(t, LinesOverlap(deleteLines(2, 4), deleteLines(4, 6)))
	require.True(t, LinesOverlap(deleteLines(3, 3), deleteLines(2, 5)))
	require.False(t, LinesOverlap(deleteLines(1, 2), deleteLines(3, 4)))

	other := deleteLines(2, 4)
	other.File = "other.go"
	require.False(t, LinesOverlap(deleteLines(2, 4), other))
}
