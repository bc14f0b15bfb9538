package wall

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Analytic and voxel surfaces used to exercise the generator end to end

func mustBuild(verts []r3.Vec, faces []Face, sym Symmetry) *WallMesh {
	w, err := NewWallMesh(verts, faces, sym)
	if err != nil {
		panic(err)
	}
	return w
}

// Hemisphere is the z >= 0 half of a sphere of radius R, open along the
// equator, which lies on the z = 0 symmetry plane
func Hemisphere(R float64, nLat, nLon int) *WallMesh {
	var (
		verts = []r3.Vec{{Z: R}}
		faces []Face
	)
	ring := func(i, j int) int { return 1 + (i-1)*nLon + (j % nLon) }
	for i := 1; i <= nLat; i++ {
		theta := 0.5 * math.Pi * float64(i) / float64(nLat)
		z := R * math.Cos(theta)
		if i == nLat {
			z = 0
		}
		for j := 0; j < nLon; j++ {
			phi := 2 * math.Pi * float64(j) / float64(nLon)
			verts = append(verts, r3.Vec{
				X: R * math.Sin(theta) * math.Cos(phi),
				Y: R * math.Sin(theta) * math.Sin(phi),
				Z: z,
			})
		}
	}
	for j := 0; j < nLon; j++ {
		faces = append(faces, Face{Verts: [3]int{0, ring(1, j), ring(1, j+1)}, Tag: 1})
	}
	for i := 1; i < nLat; i++ {
		for j := 0; j < nLon; j++ {
			a, b, c, d := ring(i, j), ring(i+1, j), ring(i+1, j+1), ring(i, j+1)
			faces = append(faces,
				Face{Verts: [3]int{a, b, c}, Tag: 1},
				Face{Verts: [3]int{a, c, d}, Tag: 1})
		}
	}
	return mustBuild(verts, faces, Symmetry{Axis: 2})
}

// Sphere is a closed latitude-longitude sphere of radius R
func Sphere(R float64, nLat, nLon int) *WallMesh {
	var (
		verts = []r3.Vec{{Z: R}}
		faces []Face
	)
	ring := func(i, j int) int { return 1 + (i-1)*nLon + (j % nLon) }
	for i := 1; i < nLat; i++ {
		theta := math.Pi * float64(i) / float64(nLat)
		for j := 0; j < nLon; j++ {
			phi := 2 * math.Pi * float64(j) / float64(nLon)
			verts = append(verts, r3.Vec{
				X: R * math.Sin(theta) * math.Cos(phi),
				Y: R * math.Sin(theta) * math.Sin(phi),
				Z: R * math.Cos(theta),
			})
		}
	}
	south := len(verts)
	verts = append(verts, r3.Vec{Z: -R})
	for j := 0; j < nLon; j++ {
		faces = append(faces, Face{Verts: [3]int{0, ring(1, j), ring(1, j+1)}, Tag: 1})
		faces = append(faces, Face{Verts: [3]int{south, ring(nLat-1, j+1), ring(nLat-1, j)}, Tag: 1})
	}
	for i := 1; i < nLat-1; i++ {
		for j := 0; j < nLon; j++ {
			a, b, c, d := ring(i, j), ring(i+1, j), ring(i+1, j+1), ring(i, j+1)
			faces = append(faces,
				Face{Verts: [3]int{a, b, c}, Tag: 1},
				Face{Verts: [3]int{a, c, d}, Tag: 1})
		}
	}
	return mustBuild(verts, faces, NoSymmetry)
}

// Cone has its apex at (0, 0, H) over a closed disk of radius R at z = 0
func Cone(R, H float64, nLon int) *WallMesh {
	var (
		verts = []r3.Vec{{Z: H}, {}}
		faces []Face
	)
	rim := func(j int) int { return 2 + j%nLon }
	for j := 0; j < nLon; j++ {
		phi := 2 * math.Pi * float64(j) / float64(nLon)
		verts = append(verts, r3.Vec{X: R * math.Cos(phi), Y: R * math.Sin(phi)})
	}
	for j := 0; j < nLon; j++ {
		faces = append(faces,
			Face{Verts: [3]int{0, rim(j), rim(j + 1)}, Tag: 1},
			Face{Verts: [3]int{1, rim(j + 1), rim(j)}, Tag: 2})
	}
	return mustBuild(verts, faces, NoSymmetry)
}

/*
VoxelSurface triangulates the exposed faces of the filled cells of an
nx by ny by nz grid of cubes of size h. Cells that only touch along an edge or a
corner produce a non-manifold wall and are rejected.
*/
func VoxelSurface(filled func(i, j, k int) bool, nx, ny, nz int, h float64) *WallMesh {
	var (
		index = make(map[[3]int]int)
		verts []r3.Vec
		faces []Face
	)
	isFilled := func(c [3]int) bool {
		if c[0] < 0 || c[1] < 0 || c[2] < 0 || c[0] >= nx || c[1] >= ny || c[2] >= nz {
			return false
		}
		return filled(c[0], c[1], c[2])
	}
	node := func(g [3]int) int {
		if n, ok := index[g]; ok {
			return n
		}
		index[g] = len(verts)
		verts = append(verts, r3.Vec{X: float64(g[0]) * h, Y: float64(g[1]) * h, Z: float64(g[2]) * h})
		return index[g]
	}
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				cell := [3]int{i, j, k}
				if !isFilled(cell) {
					continue
				}
				for d := 0; d < 3; d++ {
					for _, s := range []int{-1, 1} {
						nb := cell
						nb[d] += s
						if isFilled(nb) {
							continue
						}
						// e_u x e_v = e_d, so (0,0) (1,0) (1,1) (0,1) in (u, v) winds around +e_d
						u, v := (d+1)%3, (d+2)%3
						var quad [4]int
						for q, uv := range [4][2]int{{0, 0}, {1, 0}, {1, 1}, {0, 1}} {
							g := cell
							if s > 0 {
								g[d]++
							}
							g[u] += uv[0]
							g[v] += uv[1]
							quad[q] = node(g)
						}
						if s < 0 {
							quad[1], quad[3] = quad[3], quad[1]
						}
						faces = append(faces,
							Face{Verts: [3]int{quad[0], quad[1], quad[2]}, Tag: 1},
							Face{Verts: [3]int{quad[0], quad[2], quad[3]}, Tag: 1})
					}
				}
			}
		}
	}
	return mustBuild(verts, faces, NoSymmetry)
}

// Box is a solid block of nx by ny by nz cubes
func Box(nx, ny, nz int, h float64) *WallMesh {
	return VoxelSurface(func(i, j, k int) bool { return true }, nx, ny, nz, h)
}

// Slot is a block with a one cell wide trench cut from the top down to the
// first layer of cells at column i = slot. The trench walls sit at x = slot*h
// and x = (slot+1)*h.
func Slot(nx, ny, nz, slot int, h float64) *WallMesh {
	return VoxelSurface(func(i, j, k int) bool { return i != slot || k == 0 }, nx, ny, nz, h)
}

// LBlock removes the upper half of the block above its right half, leaving a
// concave ridge along the inside corner
func LBlock(nx, ny, nz int, h float64) *WallMesh {
	return VoxelSurface(func(i, j, k int) bool { return i < nx/2 || k < nz/2 }, nx, ny, nz, h)
}
