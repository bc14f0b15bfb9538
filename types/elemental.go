package types

import (
	"fmt"
	"math"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	// This packs two index coordinates into two 32 bit unsigned integers to act as a hash and an indirect access method
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	var (
		enTmp EdgeKey
	)
	enTmp = ek >> 32
	verts[1] = int(enTmp)
	verts[0] = int(ek - enTmp*(1<<32))
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

// Contains reports whether vertex v is one of the edge's endpoints
func (ek EdgeKey) Contains(v int) bool {
	verts := ek.GetVertices(false)
	return verts[0] == v || verts[1] == v
}

// Other returns the endpoint of the edge opposite to v
func (ek EdgeKey) Other(v int) int {
	verts := ek.GetVertices(false)
	if verts[0] == v {
		return verts[1]
	}
	return verts[0]
}

/*
FaceKey identifies a triangle by its three vertices independent of winding or rotation
*/
type FaceKey [3]int

func NewFaceKey(verts [3]int) (fk FaceKey) {
	fk = FaceKey(verts)
	if fk[0] > fk[1] {
		fk[0], fk[1] = fk[1], fk[0]
	}
	if fk[1] > fk[2] {
		fk[1], fk[2] = fk[2], fk[1]
	}
	if fk[0] > fk[1] {
		fk[0], fk[1] = fk[1], fk[0]
	}
	return
}
