package tetgen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/prismlayer/mesh"
	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

/*
PLC is the piecewise linear complex handed to tetgen: the envelope and farfield
triangles, each with the boundary marker of its section, and hole points that
keep tetgen from filling the inside of the envelope.
*/
type PLC struct {
	Points  []r3.Vec
	Facets  [][3]int
	Markers []int
	Holes   []r3.Vec
}

// NewPLC collects the named triangle sections of m, dropping unused points
func NewPLC(m *mesh.Mesh, holes []r3.Vec, sections ...string) (plc *PLC, err error) {
	plc = &PLC{Holes: holes}
	compact := make(map[int]int)
	for _, name := range sections {
		s := m.Section(name)
		if s == nil {
			return nil, errors.Errorf("mesh has no section %s", name)
		}
		if s.Type != utils.Triangle {
			return nil, errors.Errorf("section %s holds %s elements, not triangles", name, s.Type)
		}
		for _, c := range s.Conn {
			var tri [3]int
			for i, v := range c {
				id, ok := compact[v]
				if !ok {
					id = len(plc.Points)
					compact[v] = id
					plc.Points = append(plc.Points, m.Point(v))
				}
				tri[i] = id
			}
			plc.Facets = append(plc.Facets, tri)
			plc.Markers = append(plc.Markers, s.Tag)
		}
	}
	return
}

// WritePoly writes the .poly format with 1-based node indices
func (plc *PLC) WritePoly(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Part 1 - node list\n%d 3 0 0\n", len(plc.Points))
	for i, p := range plc.Points {
		fmt.Fprintf(bw, "%d %.17g %.17g %.17g\n", i+1, p.X, p.Y, p.Z)
	}
	fmt.Fprintf(bw, "# Part 2 - facet list\n%d 1\n", len(plc.Facets))
	for i, f := range plc.Facets {
		fmt.Fprintf(bw, "1 0 %d\n3 %d %d %d\n", plc.Markers[i], f[0]+1, f[1]+1, f[2]+1)
	}
	fmt.Fprintf(bw, "# Part 3 - hole list\n%d\n", len(plc.Holes))
	for i, h := range plc.Holes {
		fmt.Fprintf(bw, "%d %.17g %.17g %.17g\n", i+1, h.X, h.Y, h.Z)
	}
	fmt.Fprintf(bw, "# Part 4 - region list\n0\n")
	return bw.Flush()
}

func (plc *PLC) WritePolyFile(filename string) (err error) {
	var file *os.File
	if file, err = os.Create(filename); err != nil {
		return
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return errors.Wrapf(plc.WritePoly(file), "writing %s", filename)
}

// Output is a tetgen result with 0-based indices
type Output struct {
	Points      []r3.Vec
	Tets        [][4]int
	Faces       [][3]int
	FaceMarkers []int
}

// ReadOutput reads base.node, base.ele and base.face. The node file decides
// whether the indices of all three are 0 or 1 based.
func ReadOutput(base string) (out *Output, err error) {
	out = &Output{}
	var firstIndex int
	if err = readFile(base+".node", func(r io.Reader) (err error) {
		out.Points, firstIndex, err = parseNodes(r)
		return
	}); err != nil {
		return nil, err
	}
	if err = readFile(base+".ele", func(r io.Reader) (err error) {
		out.Tets, err = parseTets(r, firstIndex, len(out.Points))
		return
	}); err != nil {
		return nil, err
	}
	if err = readFile(base+".face", func(r io.Reader) (err error) {
		out.Faces, out.FaceMarkers, err = parseFaces(r, firstIndex, len(out.Points))
		return
	}); err != nil {
		return nil, err
	}
	return
}

func readFile(filename string, parse func(r io.Reader) error) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return errors.Wrapf(parse(file), "reading %s", filename)
}

// records returns the non-comment lines of r split into fields
func records(r io.Reader) (recs [][]string, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			recs = append(recs, fields)
		}
	}
	return recs, scanner.Err()
}

func atoi(fields []string) (vals []int, err error) {
	vals = make([]int, len(fields))
	for i, f := range fields {
		if vals[i], err = strconv.Atoi(f); err != nil {
			return nil, errors.Wrapf(err, "invalid integer %q", f)
		}
	}
	return
}

// header reads the record count in the first line and checks the record lines
func header(recs [][]string, minFields int) (n int, err error) {
	if len(recs) == 0 {
		return 0, errors.New("empty file")
	}
	if n, err = strconv.Atoi(recs[0][0]); err != nil {
		return 0, errors.Wrap(err, "invalid header")
	}
	if len(recs)-1 < n {
		return 0, errors.Errorf("header announces %d records, file has %d", n, len(recs)-1)
	}
	for i := 1; i <= n; i++ {
		if len(recs[i]) < minFields {
			return 0, errors.Errorf("record %d has %d fields, need %d", i, len(recs[i]), minFields)
		}
	}
	return
}

func parseNodes(r io.Reader) (pts []r3.Vec, firstIndex int, err error) {
	recs, err := records(r)
	if err != nil {
		return
	}
	n, err := header(recs, 4)
	if err != nil {
		return
	}
	pts = make([]r3.Vec, n)
	for i := 0; i < n; i++ {
		rec := recs[1+i]
		idx, aerr := strconv.Atoi(rec[0])
		if aerr != nil {
			return nil, 0, errors.Wrap(aerr, "invalid node index")
		}
		if i == 0 {
			firstIndex = idx
			if firstIndex != 0 && firstIndex != 1 {
				return nil, 0, errors.Errorf("node indices start at %d", firstIndex)
			}
		}
		var c [3]float64
		for j := range c {
			if c[j], err = strconv.ParseFloat(rec[1+j], 64); err != nil {
				return nil, 0, errors.Wrapf(err, "node %d", idx)
			}
		}
		pts[i] = r3.Vec{X: c[0], Y: c[1], Z: c[2]}
	}
	return
}

func shift(vals []int, firstIndex, nPoints int) error {
	for i := range vals {
		vals[i] -= firstIndex
		if vals[i] < 0 || vals[i] >= nPoints {
			return errors.Errorf("node index %d out of range", vals[i]+firstIndex)
		}
	}
	return nil
}

func parseTets(r io.Reader, firstIndex, nPoints int) (tets [][4]int, err error) {
	recs, err := records(r)
	if err != nil {
		return
	}
	n, err := header(recs, 5)
	if err != nil {
		return
	}
	tets = make([][4]int, n)
	for i := 0; i < n; i++ {
		vals, aerr := atoi(recs[1+i][1:5])
		if aerr != nil {
			return nil, aerr
		}
		if err = shift(vals, firstIndex, nPoints); err != nil {
			return nil, err
		}
		copy(tets[i][:], vals)
	}
	return
}

func parseFaces(r io.Reader, firstIndex, nPoints int) (faces [][3]int, markers []int, err error) {
	recs, err := records(r)
	if err != nil {
		return
	}
	n, err := header(recs, 4)
	if err != nil {
		return
	}
	faces = make([][3]int, n)
	markers = make([]int, n)
	for i := 0; i < n; i++ {
		vals, aerr := atoi(recs[1+i][1:])
		if aerr != nil {
			return nil, nil, aerr
		}
		if err = shift(vals[:3], firstIndex, nPoints); err != nil {
			return nil, nil, err
		}
		copy(faces[i][:], vals[:3])
		if len(vals) > 3 {
			markers[i] = vals[3]
		}
	}
	return
}

/*
AppendTetRegion adds a tetgen volume to an assembled prism mesh as the
TetRegion section. Tetgen nodes that coincide exactly with an existing mesh
node reuse it. Boundary faces carrying farfieldMarker become the Farfield
section, replacing one the mesh may already have. Tetrahedra are reoriented
to positive volume.
*/
func AppendTetRegion(m *mesh.Mesh, out *Output, farfieldMarker int) (added int, err error) {
	var (
		index = make(map[r3.Vec]int, len(m.Vertices))
		remap = make([]int, len(out.Points))
		fresh []r3.Vec
	)
	for i := range m.Vertices {
		index[m.Point(i)] = i
	}
	base := len(m.Vertices)
	for i, p := range out.Points {
		if id, ok := index[p]; ok {
			remap[i] = id
			continue
		}
		remap[i] = base + len(fresh)
		fresh = append(fresh, p)
	}
	m.AddVertices(fresh)
	for i := range m.NodeFields {
		f := &m.NodeFields[i]
		f.Data = append(f.Data, make([]float64, f.NComp*len(fresh))...)
	}
	tets := lo.Map(out.Tets, func(t [4]int, _ int) []int {
		c := []int{remap[t[0]], remap[t[1]], remap[t[2]], remap[t[3]]}
		if utils.TetVolume(m.Point(c[0]), m.Point(c[1]), m.Point(c[2]), m.Point(c[3])) < 0 {
			c[1], c[2] = c[2], c[1]
		}
		return c
	})
	if len(tets) == 0 {
		return 0, errors.New("tetgen output holds no tetrahedra")
	}
	m.AddSection("TetRegion", utils.Tet, 0, tets)
	var far [][]int
	for i, f := range out.Faces {
		if out.FaceMarkers[i] == farfieldMarker {
			far = append(far, []int{remap[f[0]], remap[f[1]], remap[f[2]]})
		}
	}
	if len(far) > 0 {
		if s := m.Section("Farfield"); s != nil {
			s.Conn = far
		} else {
			m.AddSection("Farfield", utils.Triangle, farfieldMarker, far)
		}
	}
	return len(fresh), nil
}
