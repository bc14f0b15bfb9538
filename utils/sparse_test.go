package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjacency(t *testing.T) {
	dok := NewDOK(4, 5)
	dok.Link(0, 4)
	dok.Link(0, 1)
	dok.Link(0, 1)
	dok.Link(2, 3)
	dok.Link(2, 0)
	dok.Link(3, 2)
	adj := dok.ToAdjacency()
	assert.Equal(t, 4, adj.Rows())
	assert.Equal(t, []int{1, 4}, adj.Row(0))
	assert.Equal(t, 0, adj.Degree(1))
	assert.Equal(t, []int{0, 3}, adj.Row(2))
	assert.Equal(t, []int{2}, adj.Row(3))
	assert.True(t, adj.Contains(2, 3))
	assert.False(t, adj.Contains(2, 1))
	assert.False(t, adj.Contains(1, 0))
}
