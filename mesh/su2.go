package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
)

// keyValue splits an SU2 "KEY= value" line
func keyValue(line string) (key, val string, ok bool) {
	key, val, ok = strings.Cut(line, "=")
	return strings.TrimSpace(key), strings.TrimSpace(val), ok
}

// count parses an integer field, naming it in the error
func count(field, what string) (n int, err error) {
	if n, err = strconv.Atoi(strings.TrimSpace(field)); err != nil {
		return 0, errors.Errorf("invalid %s: %q", what, field)
	}
	return
}

func readConn(fields []string, n int) (conn []int, err error) {
	if len(fields) < n {
		return nil, errors.Errorf("expected %d node indices, got %d", n, len(fields))
	}
	conn = make([]int, n)
	for j := range conn {
		if conn[j], err = strconv.Atoi(fields[j]); err != nil {
			return nil, errors.Wrap(err, "invalid node index")
		}
	}
	return
}

// ReadSU2 reads an SU2 native format file. Elements of the NELEM block are
// grouped into one section per element type, each marker becomes a boundary
// section tagged by its position in the marker list starting at 1.
func ReadSU2(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	msh, err := ParseSU2(file)
	return msh, errors.Wrapf(err, "reading %s", filename)
}

func ParseSU2(r io.Reader) (msh *Mesh, err error) {
	var (
		scanner          = bufio.NewScanner(r)
		ndime            int
		hasNDIME, hasPts bool
		byType           = make(map[utils.ElementType]*Section)
	)
	msh = NewMesh()
	next := func() (string, error) {
		for scanner.Scan() {
			line := scanner.Text()
			if idx := strings.Index(line, "%"); idx >= 0 {
				line = line[:idx]
			}
			if line = strings.TrimSpace(line); line != "" {
				return line, nil
			}
		}
		return "", io.ErrUnexpectedEOF
	}
	for {
		line, lerr := next()
		if lerr != nil {
			break
		}
		key, val, ok := keyValue(line)
		if !ok {
			continue
		}
		switch key {
		case "NDIME":
			hasNDIME = true
			if ndime, err = strconv.Atoi(val); err != nil || (ndime != 2 && ndime != 3) {
				return nil, errors.Errorf("unsupported dimension: NDIME=%s", val)
			}
		case "NPOIN":
			hasPts = true
			fields := strings.Fields(val)
			if len(fields) == 0 {
				return nil, errors.New("missing point count in NPOIN=")
			}
			npoin, cerr := count(fields[0], "NPOIN")
			if cerr != nil {
				return nil, cerr
			}
			msh.Vertices = make([][]float64, npoin)
			for i := 0; i < npoin; i++ {
				if line, err = next(); err != nil {
					return nil, errors.New("unexpected EOF reading nodes")
				}
				fields := strings.Fields(line)
				if len(fields) < ndime {
					return nil, errors.Errorf("invalid node line: expected at least %d coordinates", ndime)
				}
				coords := make([]float64, 3)
				for j := 0; j < ndime; j++ {
					if coords[j], err = strconv.ParseFloat(fields[j], 64); err != nil {
						return nil, errors.Wrap(err, "invalid coordinate")
					}
				}
				msh.Vertices[i] = coords
			}
		case "NELEM":
			nelem, cerr := count(val, "NELEM")
			if cerr != nil {
				return nil, cerr
			}
			for i := 0; i < nelem; i++ {
				if line, err = next(); err != nil {
					return nil, errors.New("unexpected EOF reading elements")
				}
				fields := strings.Fields(line)
				id, cerr := count(fields[0], "element type")
				if cerr != nil {
					return nil, cerr
				}
				etype := utils.ElementTypeFromSU2(id)
				if etype == utils.Unknown {
					return nil, errors.Errorf("unknown element type: %d", id)
				}
				conn, cerr := readConn(fields[1:], etype.GetNumNodes())
				if cerr != nil {
					return nil, cerr
				}
				s, ok := byType[etype]
				if !ok {
					s = msh.AddSection(etype.String(), etype, 0, nil)
					byType[etype] = s
				}
				s.Conn = append(s.Conn, conn)
			}
		case "NMARK":
			nmark, cerr := count(val, "NMARK")
			if cerr != nil {
				return nil, cerr
			}
			for i := 0; i < nmark; i++ {
				if line, err = next(); err != nil {
					return nil, errors.Errorf("unexpected EOF reading marker %d", i)
				}
				k, name, _ := keyValue(line)
				if k != "MARKER_TAG" {
					return nil, errors.Errorf("expected MARKER_TAG=, got: %s", line)
				}
				if line, err = next(); err != nil {
					return nil, errors.Errorf("unexpected EOF reading marker elements for %s", name)
				}
				k, val, _ = keyValue(line)
				nElems, aerr := strconv.Atoi(val)
				if k != "MARKER_ELEMS" || aerr != nil {
					return nil, errors.Errorf("invalid MARKER_ELEMS line: %s", line)
				}
				s := msh.AddSection(name, utils.Unknown, i+1, make([][]int, 0, nElems))
				for j := 0; j < nElems; j++ {
					if line, err = next(); err != nil {
						return nil, errors.New("unexpected EOF reading boundary elements")
					}
					fields := strings.Fields(line)
					id, cerr := count(fields[0], "boundary element type")
					if cerr != nil {
						return nil, cerr
					}
					etype := utils.ElementTypeFromSU2(id)
					if etype.GetDimension() != ndime-1 {
						return nil, errors.Errorf("marker %s: unsupported boundary element type %d", name, id)
					}
					if s.Type == utils.Unknown {
						s.Type = etype
					}
					conn, cerr := readConn(fields[1:], etype.GetNumNodes())
					if cerr != nil {
						return nil, cerr
					}
					s.Conn = append(s.Conn, conn)
				}
				if s.Type == utils.Unknown {
					s.Type = utils.Triangle
				}
			}
		}
	}
	err = scanner.Err()
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}
	if !hasNDIME {
		return nil, errors.New("missing required NDIME= section")
	}
	if !hasPts {
		return nil, errors.New("missing required NPOIN= section")
	}
	return
}

// WriteSU2 writes volume sections as the NELEM block and boundary sections as markers
func (m *Mesh) WriteSU2(w io.Writer) (err error) {
	bw := bufio.NewWriter(w)
	var (
		volumes    = m.VolumeSections()
		boundaries = m.BoundarySections()
		nElem      int
	)
	writeConn := func(etype utils.ElementType, conn []int, id int) {
		fmt.Fprintf(bw, "%d", etype.SU2Type())
		for _, v := range conn {
			fmt.Fprintf(bw, " %d", v)
		}
		if id >= 0 {
			fmt.Fprintf(bw, " %d", id)
		}
		fmt.Fprintln(bw)
	}
	for _, s := range volumes {
		nElem += len(s.Conn)
	}
	fmt.Fprintf(bw, "NDIME= 3\n")
	fmt.Fprintf(bw, "NELEM= %d\n", nElem)
	id := 0
	for _, s := range volumes {
		for _, c := range s.Conn {
			writeConn(s.Type, c, id)
			id++
		}
	}
	fmt.Fprintf(bw, "NPOIN= %d\n", len(m.Vertices))
	for i, v := range m.Vertices {
		fmt.Fprintf(bw, "%.17g %.17g %.17g %d\n", v[0], v[1], v[2], i)
	}
	fmt.Fprintf(bw, "NMARK= %d\n", len(boundaries))
	for _, s := range boundaries {
		fmt.Fprintf(bw, "MARKER_TAG= %s\n", s.Name)
		fmt.Fprintf(bw, "MARKER_ELEMS= %d\n", len(s.Conn))
		for _, c := range s.Conn {
			writeConn(s.Type, c, -1)
		}
	}
	return bw.Flush()
}

func (m *Mesh) WriteSU2File(filename string) (err error) {
	var file *os.File
	if file, err = os.Create(filename); err != nil {
		return
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return errors.Wrapf(m.WriteSU2(file), "writing %s", filename)
}
