package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Test packed int for edge labeling
		en := NewEdgeKey([2]int{1, 0})
		assert.Equal(t, EdgeKey(1<<32), en)
		assert.Equal(t, [2]int{0, 1}, en.GetVertices(false))
		assert.Equal(t, [2]int{1, 0}, en.GetVertices(true))

		en = NewEdgeKey([2]int{0, 10})
		assert.Equal(t, EdgeKey(10*(1<<32)), en)
		assert.Equal(t, [2]int{0, 10}, en.GetVertices(false))

		en = NewEdgeKey([2]int{100, 1})
		assert.Equal(t, EdgeKey(100*(1<<32)+1), en)
		assert.Equal(t, [2]int{1, 100}, en.GetVertices(false))
		assert.True(t, en.Contains(100))
		assert.False(t, en.Contains(2))
		assert.Equal(t, 1, en.Other(100))
		assert.Equal(t, 100, en.Other(1))

		// Test maximum/minimum indices
		en = NewEdgeKey([2]int{1<<32 - 1, 1<<32 - 1})
		assert.Equal(t, EdgeKey(1<<64-1), en)
		assert.Equal(t, [2]int{1<<32 - 1, 1<<32 - 1}, en.GetVertices(false))

		assert.Panics(t, func() { NewEdgeKey([2]int{-1, 2}) })
	}
	{ // Face keys ignore rotation and winding
		k := NewFaceKey([3]int{7, 2, 5})
		assert.Equal(t, FaceKey{2, 5, 7}, k)
		assert.Equal(t, k, NewFaceKey([3]int{5, 7, 2}))
		assert.Equal(t, k, NewFaceKey([3]int{2, 7, 5}))
	}
	{
		tokens := []string{"WALL", "Wall_22", "farfield", "Far-1", "SYMMETRY", "Interface", "fuselage"}
		flags := []BCFLAG{BC_Wall, BC_Wall, BC_Far, BC_Far, BC_Symmetry, BC_Interface, BC_Wall}
		for i, token := range tokens {
			assert.Equal(t, flags[i], NewBCFLAG(token), token)
		}
		assert.Equal(t, "Farfield", BC_Far.String())
	}
}
