package utils

import (
	"sort"

	"github.com/james-bowman/sparse"
)

// Adjacency is a compressed sparse row incidence structure. Row i holds the
// column indices Index[Offsets[i]:Offsets[i+1]] in ascending order.
type Adjacency struct {
	Offsets []int
	Index   []int
}

// DOK accumulates (row, col) incidence pairs before compression
type DOK struct {
	M *sparse.DOK
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{sparse.NewDOK(nr, nc)}
	return
}

func (m DOK) Dims() (r, c int) { return m.M.Dims() }

// Link marks row i as incident to column j, duplicates collapse
func (m DOK) Link(i, j int) { m.M.Set(i, j, 1) }

// ToAdjacency compresses the incidence pattern to CSR form
func (m DOK) ToAdjacency() (adj Adjacency) {
	var (
		nr, _ = m.Dims()
		raw   = m.M.ToCSR().RawMatrix()
	)
	adj.Offsets = make([]int, nr+1)
	copy(adj.Offsets, raw.Indptr)
	adj.Index = make([]int, len(raw.Ind))
	copy(adj.Index, raw.Ind)
	for i := 0; i < nr; i++ {
		sort.Ints(adj.Index[adj.Offsets[i]:adj.Offsets[i+1]])
	}
	return
}

func (adj Adjacency) Rows() int { return len(adj.Offsets) - 1 }

// Row returns the columns incident to row i, the slice must not be modified
func (adj Adjacency) Row(i int) []int {
	return adj.Index[adj.Offsets[i]:adj.Offsets[i+1]]
}

func (adj Adjacency) Degree(i int) int { return adj.Offsets[i+1] - adj.Offsets[i] }

// Contains reports whether column j is incident to row i
func (adj Adjacency) Contains(i, j int) bool {
	row := adj.Row(i)
	k := sort.SearchInts(row, j)
	return k < len(row) && row[k] == j
}
