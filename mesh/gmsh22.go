package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
)

// gmshElementType22 maps the linear Gmsh element identifiers
var gmshElementType22 = map[int]utils.ElementType{
	1: utils.Line,
	2: utils.Triangle,
	3: utils.Quad,
	4: utils.Tet,
	5: utils.Hex,
	6: utils.Prism,
	7: utils.Pyramid,
}

// ReadGmsh22 reads an ASCII Gmsh MSH 2.2 file. Elements are grouped into one
// section per (type, physical tag), named after the physical group when the
// file carries $PhysicalNames.
func ReadGmsh22(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	msh, err := ParseGmsh22(file)
	return msh, errors.Wrapf(err, "reading %s", filename)
}

type gmshSectionKey struct {
	etype utils.ElementType
	tag   int
}

func ParseGmsh22(r io.Reader) (msh *Mesh, err error) {
	var (
		scanner  = bufio.NewScanner(r)
		names    = make(map[int]string)
		nodeIDs  = make(map[int]int)
		sections = make(map[gmshSectionKey]*Section)
		order    []gmshSectionKey
	)
	msh = NewMesh()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "$MeshFormat":
			if !scanner.Scan() {
				return nil, errors.New("unexpected EOF in MeshFormat")
			}
			parts := strings.Fields(scanner.Text())
			if len(parts) < 3 {
				return nil, errors.New("invalid MeshFormat line")
			}
			if !strings.HasPrefix(parts[0], "2.") {
				return nil, errors.Errorf("unsupported Gmsh format version: %s", parts[0])
			}
			if parts[1] != "0" {
				return nil, errors.New("binary Gmsh files are not supported")
			}
		case "$PhysicalNames":
			if err = readPhysicalNames(scanner, names); err != nil {
				return nil, err
			}
		case "$Nodes":
			if err = readNodes22(scanner, msh, nodeIDs); err != nil {
				return nil, err
			}
		case "$Elements":
			if !scanner.Scan() {
				return nil, errors.New("unexpected EOF in Elements")
			}
			numElements, cerr := count(scanner.Text(), "element count")
			if cerr != nil {
				return nil, cerr
			}
			for i := 0; i < numElements; i++ {
				if !scanner.Scan() {
					return nil, errors.New("unexpected EOF reading elements")
				}
				parts := strings.Fields(scanner.Text())
				if len(parts) < 3 {
					return nil, errors.New("invalid element line")
				}
				var head [3]int
				for j, what := range []string{"element id", "element type", "tag count"} {
					if head[j], err = count(parts[j], what); err != nil {
						return nil, err
					}
				}
				elemID, elemType, numTags := head[0], head[1], head[2]
				etype, ok := gmshElementType22[elemType]
				if !ok {
					// Points and higher order elements
					continue
				}
				nodeStart := 3 + numTags
				if len(parts) < nodeStart+etype.GetNumNodes() {
					return nil, errors.Errorf("element %d: expected %d nodes, got %d",
						elemID, etype.GetNumNodes(), len(parts)-nodeStart)
				}
				tag := 0
				if numTags > 0 {
					if tag, err = count(parts[3], "physical tag"); err != nil {
						return nil, errors.Wrapf(err, "element %d", elemID)
					}
				}
				conn := make([]int, etype.GetNumNodes())
				for j := range conn {
					id, cerr := count(parts[nodeStart+j], "node id")
					if cerr != nil {
						return nil, errors.Wrapf(cerr, "element %d", elemID)
					}
					if conn[j], ok = nodeIDs[id]; !ok {
						return nil, errors.Errorf("element %d references unknown node %d", elemID, id)
					}
				}
				key := gmshSectionKey{etype, tag}
				s, ok := sections[key]
				if !ok {
					s = &Section{Name: sectionName(names, etype, tag), Type: etype, Tag: tag}
					sections[key] = s
					order = append(order, key)
				}
				s.Conn = append(s.Conn, conn)
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanner error")
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].tag != order[j].tag {
			return order[i].tag < order[j].tag
		}
		return order[i].etype < order[j].etype
	})
	for _, key := range order {
		msh.Sections = append(msh.Sections, sections[key])
	}
	return
}

func sectionName(names map[int]string, etype utils.ElementType, tag int) string {
	if name, ok := names[tag]; ok {
		return name
	}
	return fmt.Sprintf("%s_%d", etype, tag)
}

// readPhysicalNames reads physical group names by tag
func readPhysicalNames(scanner *bufio.Scanner, names map[int]string) error {
	if !scanner.Scan() {
		return errors.New("unexpected EOF in PhysicalNames")
	}
	numNames, err := count(scanner.Text(), "physical name count")
	if err != nil {
		return err
	}
	for i := 0; i < numNames; i++ {
		if !scanner.Scan() {
			return errors.New("unexpected EOF reading physical names")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) >= 3 {
			tag, err := count(parts[1], "physical tag")
			if err != nil {
				return err
			}
			name := strings.Trim(strings.Join(parts[2:], " "), "\"")
			names[tag] = name
		}
	}
	return nil
}

// readNodes22 reads nodes, remapping the file's node ids onto array indices
func readNodes22(scanner *bufio.Scanner, msh *Mesh, nodeIDs map[int]int) error {
	if !scanner.Scan() {
		return errors.New("unexpected EOF in Nodes")
	}
	numNodes, err := count(scanner.Text(), "node count")
	if err != nil {
		return err
	}
	msh.Vertices = make([][]float64, 0, numNodes)
	for i := 0; i < numNodes; i++ {
		if !scanner.Scan() {
			return errors.New("unexpected EOF reading nodes")
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) < 4 {
			return errors.Errorf("invalid node line: %s", scanner.Text())
		}
		nodeID, err := count(parts[0], "node id")
		if err != nil {
			return err
		}
		coords := make([]float64, 3)
		for j := range coords {
			if coords[j], err = strconv.ParseFloat(parts[1+j], 64); err != nil {
				return errors.Wrapf(err, "node %d", nodeID)
			}
		}
		nodeIDs[nodeID] = len(msh.Vertices)
		msh.Vertices = append(msh.Vertices, coords)
	}
	return nil
}
