package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// WriteVTK writes a legacy ASCII unstructured grid with every section as cells,
// the section index as cell data and the node fields as point data
func (m *Mesh) WriteVTK(w io.Writer, title string) (err error) {
	var (
		bw     = bufio.NewWriter(w)
		nCells = lo.SumBy(m.Sections, func(s *Section) int { return len(s.Conn) })
		size   = lo.SumBy(m.Sections, func(s *Section) int { return len(s.Conn) * (s.Type.GetNumNodes() + 1) })
	)
	fmt.Fprintf(bw, "# vtk DataFile Version 3.0\n%s\nASCII\nDATASET UNSTRUCTURED_GRID\n", title)
	fmt.Fprintf(bw, "POINTS %d double\n", len(m.Vertices))
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "%.17g %.17g %.17g\n", v[0], v[1], v[2])
	}
	fmt.Fprintf(bw, "CELLS %d %d\n", nCells, size)
	for _, s := range m.Sections {
		for _, c := range s.Conn {
			fmt.Fprintf(bw, "%d", len(c))
			for _, v := range c {
				fmt.Fprintf(bw, " %d", v)
			}
			fmt.Fprintln(bw)
		}
	}
	fmt.Fprintf(bw, "CELL_TYPES %d\n", nCells)
	for _, s := range m.Sections {
		for range s.Conn {
			fmt.Fprintf(bw, "%d\n", s.Type.SU2Type())
		}
	}
	fmt.Fprintf(bw, "CELL_DATA %d\nSCALARS Section int 1\nLOOKUP_TABLE default\n", nCells)
	for i, s := range m.Sections {
		for range s.Conn {
			fmt.Fprintf(bw, "%d\n", i)
		}
	}
	if len(m.NodeFields) > 0 {
		fmt.Fprintf(bw, "POINT_DATA %d\n", len(m.Vertices))
	}
	for _, f := range m.NodeFields {
		switch f.NComp {
		case 3:
			fmt.Fprintf(bw, "VECTORS %s double\n", f.Name)
		default:
			fmt.Fprintf(bw, "SCALARS %s double %d\nLOOKUP_TABLE default\n", f.Name, f.NComp)
		}
		for i := 0; i < len(f.Data); i += f.NComp {
			for j := 0; j < f.NComp; j++ {
				if j > 0 {
					fmt.Fprint(bw, " ")
				}
				fmt.Fprintf(bw, "%.10g", f.Data[i+j])
			}
			fmt.Fprintln(bw)
		}
	}
	return bw.Flush()
}

func (m *Mesh) WriteVTKFile(filename, title string) (err error) {
	for _, f := range m.NodeFields {
		if len(f.Data) != f.NComp*len(m.Vertices) {
			return errors.Errorf("node field %s has %d values for %d vertices", f.Name, len(f.Data), len(m.Vertices))
		}
	}
	var file *os.File
	if file, err = os.Create(filename); err != nil {
		return
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return errors.Wrapf(m.WriteVTK(file, title), "writing %s", filename)
}
