package treemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendermap/internal/model"
)

func TestLayout_SingleEntryFillsGrid(t *testing.T) {
	entries := Group([]model.Sender{sender("a@x.com", 4)}, 0, model.ModeRegroup)
	cells := Layout(entries, 40, 10)
	require.Len(t, cells, 1)
	assert.Equal(t, Cell{Entry: entries[0], X: 0, Y: 0, W: 40, H: 10}, cells[0])
}

func TestLayout_NoOverlapWithinBounds(t *testing.T) {
	data := []model.Sender{
		sender("a", 40), sender("b", 25), sender("c", 12), sender("d", 9),
		sender("e", 6), sender("f", 4), sender("g", 3), sender("h", 1),
	}
	const w, h = 80, 24
	cells := Layout(Group(data, 0, model.ModeRegroup), w, h)
	require.NotEmpty(t, cells)

	var grid [h][w]int
	covered := 0
	for _, c := range cells {
		require.GreaterOrEqual(t, c.X, 0)
		require.GreaterOrEqual(t, c.Y, 0)
		require.LessOrEqual(t, c.X+c.W, w)
		require.LessOrEqual(t, c.Y+c.H, h)
		for y := c.Y; y < c.Y+c.H; y++ {
			for x := c.X; x < c.X+c.W; x++ {
				require.Zero(t, grid[y][x], "cell %q overlaps at %d,%d", c.Entry.Key, x, y)
				grid[y][x] = 1
				covered++
			}
		}
	}
	assert.GreaterOrEqual(t, covered, w*h*95/100)

	// The biggest sender gets the biggest cell.
	assert.Equal(t, "a", cells[0].Entry.Key)
	for _, c := range cells[1:] {
		assert.GreaterOrEqual(t, cells[0].W*cells[0].H, c.W*c.H)
	}
}

func TestLayout_Degenerate(t *testing.T) {
	entries := Group(abc, 0, model.ModeRegroup)
	assert.Nil(t, Layout(entries, 0, 10))
	assert.Nil(t, Layout(entries, 10, 0))
	assert.Nil(t, Layout(nil, 10, 10))
}
