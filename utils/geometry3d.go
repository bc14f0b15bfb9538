package utils

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// TriangleNormal returns the unit normal and area of triangle (a, b, c) with
// counter-clockwise winding
func TriangleNormal(a, b, c r3.Vec) (n r3.Vec, area float64) {
	cr := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	nrm := r3.Norm(cr)
	area = 0.5 * nrm
	if nrm < NODETOL {
		return
	}
	n = r3.Scale(1/nrm, cr)
	return
}

func TriangleCentroid(a, b, c r3.Vec) r3.Vec {
	return r3.Scale(1./3., r3.Add(a, r3.Add(b, c)))
}

// CornerAngle is the interior angle at vertex p between rays to a and b
func CornerAngle(p, a, b r3.Vec) float64 {
	u, v := r3.Sub(a, p), r3.Sub(b, p)
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu < NODETOL || nv < NODETOL {
		return 0
	}
	return math.Acos(Clamp(r3.Dot(u, v)/(nu*nv), -1, 1))
}

// AngleBetween returns the angle between two vectors in radians
func AngleBetween(u, v r3.Vec) float64 {
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu < NODETOL || nv < NODETOL {
		return 0
	}
	return math.Acos(Clamp(r3.Dot(u, v)/(nu*nv), -1, 1))
}

// TetVolume is the signed volume of tet (a, b, c, d); positive when d lies on
// the side of triangle (a, b, c) its counter-clockwise normal points to
func TetVolume(a, b, c, d r3.Vec) float64 {
	return r3.Dot(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)), r3.Sub(d, a)) / 6.
}

// TetVolumeGrad returns TetVolume and its gradient with respect to each vertex
func TetVolumeGrad(a, b, c, d r3.Vec) (vol float64, ga, gb, gc, gd r3.Vec) {
	var (
		ab, ac, ad = r3.Sub(b, a), r3.Sub(c, a), r3.Sub(d, a)
	)
	vol = r3.Dot(r3.Cross(ab, ac), ad) / 6.
	gb = r3.Scale(1./6., r3.Cross(ac, ad))
	gc = r3.Scale(1./6., r3.Cross(ad, ab))
	gd = r3.Scale(1./6., r3.Cross(ab, ac))
	ga = r3.Scale(-1, r3.Add(gb, r3.Add(gc, gd)))
	return
}

// PrismCornerVolumes evaluates the six corner tetrahedra of the prism with base
// (p0, p1, p2) and top (q0, q1, q2). All six are positive for a valid prism.
func PrismCornerVolumes(p, q [3]r3.Vec) (vols [6]float64) {
	for i := 0; i < 3; i++ {
		j, k := (i+1)%3, (i+2)%3
		vols[i] = TetVolume(p[i], p[j], p[k], q[i])
		vols[3+i] = TetVolume(q[i], q[k], q[j], p[i])
	}
	return
}

// MinPrismCornerVolume returns the smallest corner tet volume of the prism
func MinPrismCornerVolume(p, q [3]r3.Vec) (vMin float64) {
	vols := PrismCornerVolumes(p, q)
	vMin = vols[0]
	for _, v := range vols[1:] {
		vMin = math.Min(vMin, v)
	}
	return
}

// ClosestPointOnTriangle returns the point of triangle (a, b, c) nearest to p
// and its barycentric coordinates
func ClosestPointOnTriangle(p, a, b, c r3.Vec) (q r3.Vec, bary [3]float64) {
	var (
		ab, ac, ap = r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
		d1, d2     = r3.Dot(ab, ap), r3.Dot(ac, ap)
	)
	if d1 <= 0 && d2 <= 0 {
		return a, [3]float64{1, 0, 0}
	}
	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b, [3]float64{0, 1, 0}
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return r3.Add(a, r3.Scale(v, ab)), [3]float64{1 - v, v, 0}
	}
	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c, [3]float64{0, 0, 1}
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return r3.Add(a, r3.Scale(w, ac)), [3]float64{1 - w, 0, w}
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b))), [3]float64{0, 1 - w, w}
	}
	denom := 1. / (va + vb + vc)
	v, w := vb*denom, vc*denom
	q = r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
	return q, [3]float64{1 - v - w, v, w}
}

// Barycentric evaluates the point at barycentric coordinates bary on (a, b, c)
func Barycentric(a, b, c r3.Vec, bary [3]float64) r3.Vec {
	return r3.Add(r3.Scale(bary[0], a), r3.Add(r3.Scale(bary[1], b), r3.Scale(bary[2], c)))
}

// TangentFrame builds two unit vectors spanning the plane orthogonal to unit n
func TangentFrame(n r3.Vec) (t1, t2 r3.Vec) {
	axis := r3.Vec{X: 1}
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case ay <= ax && ay <= az:
		axis = r3.Vec{Y: 1}
	case az <= ax && az <= ay:
		axis = r3.Vec{Z: 1}
	}
	t1 = r3.Unit(r3.Cross(n, axis))
	t2 = r3.Cross(n, t1)
	return
}

// RejectFrom removes the component of v along unit direction t
func RejectFrom(v, t r3.Vec) r3.Vec {
	return r3.Sub(v, r3.Scale(r3.Dot(v, t), t))
}

// SafeUnit normalizes v, returning the zero vector for degenerate input
func SafeUnit(v r3.Vec) r3.Vec {
	nv := r3.Norm(v)
	if nv < NODETOL {
		return r3.Vec{}
	}
	return r3.Scale(1/nv, v)
}
