package readfiles

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/gopcd/geometry2D"
	"github.com/notargets/gopcd/types"
	jww "github.com/spf13/jwalterweatherman"
)

// Gambit element type of a 3 node triangle
const gambitTriangle = 3

// ReadGambit reads a 2D triangle mesh from a Gambit neutral (.neu) file
func ReadGambit(filename string, markerMap map[string]int) (tm *geometry2D.TriMesh, err error) {
	var (
		file *os.File
	)
	jww.INFO.Printf("Reading Gambit file named: %s\n", filename)
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	if tm, err = ParseGambit(bufio.NewReader(file), markerMap); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	jww.INFO.Printf("Read %d triangles and %d vertices\n", tm.NumElements(), tm.NumVertices())
	return
}

// ParseGambit reads the sections of a Gambit neutral file in order: control info, nodal coordinates,
// elements, element groups and boundary conditions. Boundary condition names are the marker tags.
func ParseGambit(reader *bufio.Reader, markerMap map[string]int) (tm *geometry2D.TriMesh, err error) {
	var (
		Nv, K, Nmats, Nbcs, Nsd int
		VX, VY                  []float64
		EToV                    [][3]int
		bcs                     map[string][]types.EdgeKey
	)
	// Header
	if err = skipLines(6, reader); err != nil {
		return
	}
	if Nv, K, Nmats, Nbcs, Nsd, err = readGambitHeader(reader); err != nil {
		return
	}
	if Nsd != 2 {
		return nil, fmt.Errorf("only 2 dimensional meshes are supported, have NDFCD = %d", Nsd)
	}
	if err = skipLines(2, reader); err != nil {
		return
	}
	if VX, VY, err = readGambitVertices(Nv, reader); err != nil {
		return
	}
	if err = skipLines(2, reader); err != nil {
		return
	}
	if EToV, err = readGambitTris(K, Nv, reader); err != nil {
		return
	}
	if err = skipLines(2, reader); err != nil {
		return
	}
	for n := 0; n < Nmats; n++ {
		if err = skipGambitGroup(reader); err != nil {
			return
		}
	}
	if bcs, err = readGambitBCs(Nbcs, EToV, reader); err != nil {
		return
	}
	if tm, err = geometry2D.NewTriMesh(VX, VY, EToV); err != nil {
		return
	}
	err = markBoundary(tm, bcs, markerMap, "Gambit")
	return
}

func readGambitHeader(reader *bufio.Reader) (Nv, K, Nmats, Nbcs, Nsd int, err error) {
	var line string
	if line, err = getLine(reader); err != nil {
		return
	}
	var n int
	if n, err = fmt.Sscanf(line, "%d %d %d %d %d", &Nv, &K, &Nmats, &Nbcs, &Nsd); err != nil {
		return
	}
	if n != 5 {
		err = fmt.Errorf("malformed header \"%s\"", line)
	}
	return
}

func readGambitVertices(Nv int, reader *bufio.Reader) (VX, VY []float64, err error) {
	var (
		line string
		ind  int
	)
	VX, VY = make([]float64, Nv), make([]float64, Nv)
	for i := 0; i < Nv; i++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if _, err = fmt.Sscanf(line, "%d %f %f", &ind, &VX[i], &VY[i]); err != nil {
			return nil, nil, fmt.Errorf("vertex %d: %w", i+1, err)
		}
	}
	return
}

// readGambitTris converts the one based vertex numbers of the element section to zero based
func readGambitTris(K, Nv int, reader *bufio.Reader) (EToV [][3]int, err error) {
	var (
		line             string
		ind, typ, nfaces int
		n1, n2, n3       int
	)
	EToV = make([][3]int, K)
	for k := 0; k < K; k++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if _, err = fmt.Sscanf(line, "%d %d %d %d %d %d", &ind, &typ, &nfaces, &n1, &n2, &n3); err != nil {
			return nil, fmt.Errorf("element %d: %w", k+1, err)
		}
		if typ != gambitTriangle || nfaces != 3 {
			return nil, fmt.Errorf("element %d is not a triangle, type %d with %d nodes", k+1, typ, nfaces)
		}
		for _, v := range [3]int{n1, n2, n3} {
			if v < 1 || v > Nv {
				return nil, fmt.Errorf("element %d references vertex %d of %d", k+1, v, Nv)
			}
		}
		EToV[k] = [3]int{n1 - 1, n2 - 1, n3 - 1}
	}
	return
}

// skipGambitGroup passes over one element group, materials carry no meaning for the flow
func skipGambitGroup(reader *bufio.Reader) (err error) {
	var line string
	if line, err = getLine(reader); err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[2] != "ELEMENTS:" {
		return fmt.Errorf("malformed element group \"%s\"", line)
	}
	var nel int
	if nel, err = strconv.Atoi(fields[3]); err != nil {
		return
	}
	// Title and flags, then ten element numbers per line, then the section end and the next section title
	return skipLines(2+(nel+9)/10+2, reader)
}

// readGambitBCs returns the edges of every boundary condition, faces 1, 2 and 3 join vertices 0-1, 1-2 and 2-0
func readGambitBCs(Nbcs int, EToV [][3]int, reader *bufio.Reader) (bcs map[string][]types.EdgeKey, err error) {
	var (
		line         string
		k, typ, face int
	)
	bcs = make(map[string][]types.EdgeKey)
	for n := 0; n < Nbcs; n++ {
		if n != 0 {
			if err = skipLines(1, reader); err != nil {
				return
			}
		}
		if line, err = getLine(reader); err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed boundary condition \"%s\"", line)
		}
		name := fields[0]
		var nfaces int
		if nfaces, err = strconv.Atoi(fields[2]); err != nil {
			return nil, fmt.Errorf("boundary condition %s: %w", name, err)
		}
		for i := 0; i < nfaces; i++ {
			if line, err = getLine(reader); err != nil {
				return
			}
			if _, err = fmt.Sscanf(line, "%d %d %d", &k, &typ, &face); err != nil {
				return nil, fmt.Errorf("boundary condition %s: %w", name, err)
			}
			if k < 1 || k > len(EToV) || face < 1 || face > 3 {
				return nil, fmt.Errorf("boundary condition %s: no face %d on element %d", name, face, k)
			}
			tri := EToV[k-1]
			v0, v1 := tri[face-1], tri[face%3]
			bcs[name] = append(bcs[name], types.NewEdgeKey([2]int{v0, v1}))
		}
		if err = skipLines(1, reader); err != nil {
			return
		}
	}
	return
}
