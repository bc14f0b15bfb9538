package shell

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/prismlayer/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// QualityReport bins the angle between every lateral edge of the envelope
// prisms and the normal of their envelope triangle
type QualityReport struct {
	Dividers []float64 // Degrees, 10 degree bins over 0-90
	Counts   []float64
	Mean     float64
	Max      float64
}

func (st *State) Quality() (qr QualityReport) {
	var (
		nf     = st.Wall.NumFaces()
		angles = make([]float64, 3*nf)
	)
	st.fpm.ParallelFor(func(_, kMin, kMax int) {
		for f := kMin; f < kMax; f++ {
			p, q := st.prismPoints(f)
			m, _ := utils.TriangleNormal(q[0], q[1], q[2])
			for i := 0; i < 3; i++ {
				dev := 90.
				if m != (r3.Vec{}) {
					dev = math.Min(90, utils.Rad2Deg(utils.AngleBetween(r3.Sub(q[i], p[i]), m)))
				}
				angles[3*f+i] = dev
			}
		}
	})
	sort.Float64s(angles)
	qr.Dividers = make([]float64, 10)
	floats.Span(qr.Dividers, 0, 90)
	// The last bin is closed so 90 degrees counts
	qr.Dividers[9] = math.Nextafter(90, 91)
	qr.Counts = stat.Histogram(nil, qr.Dividers, angles, nil)
	if len(angles) > 0 {
		qr.Mean = stat.Mean(angles, nil)
		qr.Max = angles[len(angles)-1]
	}
	return
}

func (qr QualityReport) String() string {
	var (
		sb    strings.Builder
		total = floats.Sum(qr.Counts)
	)
	fmt.Fprintf(&sb, "Prism lateral edge deviation from envelope normal, mean %.2f deg, max %.2f deg\n", qr.Mean, qr.Max)
	for i, c := range qr.Counts {
		frac := 0.
		if total > 0 {
			frac = c / total
		}
		fmt.Fprintf(&sb, "%4.0f-%2.0f deg %8.0f %6.2f%% %s\n",
			qr.Dividers[i], math.Round(qr.Dividers[i+1]), c, 100*frac, strings.Repeat("#", int(math.Round(40*frac))))
	}
	return sb.String()
}
