package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/gopcd/geometry2D"
	"github.com/notargets/gopcd/types"
	jww "github.com/spf13/jwalterweatherman"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle                     = 5
	ELType_Quadrilateral                = 9
)

// DefaultMarkerMap maps SU2 marker tags of channel meshes to boundary markers
var DefaultMarkerMap = map[string]int{
	"wall":    geometry2D.MarkerWall,
	"noslip":  geometry2D.MarkerWall,
	"inflow":  geometry2D.MarkerInflow,
	"inlet":   geometry2D.MarkerInflow,
	"in":      geometry2D.MarkerInflow,
	"outflow": geometry2D.MarkerOutflow,
	"outlet":  geometry2D.MarkerOutflow,
	"out":     geometry2D.MarkerOutflow,
}

func readBCs(reader *bufio.Reader) (BCEdges map[string][]types.EdgeKey, err error) {
	var (
		nType  int
		v1, v2 int
		NBCs   int
		line   string
	)
	if NBCs, err = readNumber(reader); err != nil {
		return
	}
	BCEdges = make(map[string][]types.EdgeKey, NBCs)
	for n := 0; n < NBCs; n++ {
		var (
			label  string
			nEdges int
		)
		if label, err = readLabel(reader); err != nil {
			return
		}
		if nEdges, err = readNumber(reader); err != nil {
			return
		}
		// Duplicate tags append to a common slice
		for i := 0; i < nEdges; i++ {
			if line, err = getLine(reader); err != nil {
				return
			}
			if _, err = fmt.Sscanf(line, "%d %d %d", &nType, &v1, &v2); err != nil {
				return nil, fmt.Errorf("marker %s, edge %d: %w", label, i, err)
			}
			if SU2ElementType(nType) != ELType_LINE {
				return nil, fmt.Errorf("marker %s: boundaries should only contain line elements in 2D, have type %d",
					label, nType)
			}
			BCEdges[label] = append(BCEdges[label], types.NewEdgeKey([2]int{v1, v2}))
		}
	}
	return
}

func readVertices(reader *bufio.Reader) (VX, VY []float64, err error) {
	var (
		n, Nv int
		x, y  float64
		line  string
	)
	if Nv, err = readNumber(reader); err != nil {
		return
	}
	VX, VY = make([]float64, Nv), make([]float64, Nv)
	for i := 0; i < Nv; i++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%f %f", &x, &y); err != nil || n != 2 {
			return nil, nil, fmt.Errorf("unable to read coordinates of point %d from [%s]", i, line)
		}
		VX[i], VY[i] = x, y
	}
	return
}

func readElements(reader *bufio.Reader) (K int, EToV [][3]int, err error) {
	var (
		n          int
		nType      int
		v1, v2, v3 int
		line       string
	)
	if K, err = readNumber(reader); err != nil {
		return
	}
	EToV = make([][3]int, K)
	for k := 0; k < K; k++ {
		if line, err = getLine(reader); err != nil {
			return
		}
		if n, err = fmt.Sscanf(line, "%d %d %d %d", &nType, &v1, &v2, &v3); err != nil || n != 4 {
			return 0, nil, fmt.Errorf("unable to read vertices of element %d from [%s]", k, line)
		}
		if SU2ElementType(nType) != ELType_Triangle {
			return 0, nil, fmt.Errorf("element %d has type %d, only triangles are supported", k, nType)
		}
		EToV[k] = [3]int{v1, v2, v3}
	}
	return
}

func getToken(reader *bufio.Reader) (token string, err error) {
	var (
		line string
	)
	if line, err = getLineNoComments(reader); err != nil {
		return
	}
	ind := strings.Index(line, "=")
	if ind < 0 {
		err = fmt.Errorf("badly formed input line [%s], should have an =", line)
		return
	}
	token = line[ind+1:]
	return
}

func readLabel(reader *bufio.Reader) (label string, err error) {
	var (
		token string
	)
	if token, err = getToken(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(token, "%s", &label); err != nil {
		err = fmt.Errorf("unable to read label from token: [%s]", token)
		return
	}
	label = strings.Trim(label, " ")
	return
}

func readNumber(reader *bufio.Reader) (num int, err error) {
	var (
		token string
	)
	if token, err = getToken(reader); err != nil {
		return
	}
	if _, err = fmt.Sscanf(token, "%d", &num); err != nil {
		err = fmt.Errorf("unable to read number from token: [%s]", token)
	}
	return
}

func getLineNoComments(reader *bufio.Reader) (line string, err error) {
	for {
		if line, err = getLine(reader); err != nil {
			return
		}
		line = strings.Trim(line, " \r\t")
		if len(line) != 0 && !strings.HasPrefix(line, "%") {
			return
		}
	}
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) != 0 {
			return line, nil
		}
		if err == io.EOF {
			err = fmt.Errorf("early end of file")
		}
		return
	}
	line = strings.TrimRight(line, "\r\n")
	return
}

func skipLines(n int, reader *bufio.Reader) (err error) {
	for i := 0; i < n; i++ {
		if _, err = getLine(reader); err != nil {
			return
		}
	}
	return
}

// ParseSU2 reads a 2D triangle mesh in SU2 format. Marker tags are looked up case insensitively in
// markerMap, boundary edges with unknown tags are reported as an error.
func ParseSU2(reader *bufio.Reader, markerMap map[string]int) (tm *geometry2D.TriMesh, err error) {
	var (
		dim    int
		EToV   [][3]int
		VX, VY []float64
		bcs    map[string][]types.EdgeKey
	)
	if dim, err = readNumber(reader); err != nil {
		return
	}
	if dim != 2 {
		return nil, fmt.Errorf("only 2 dimensional meshes are supported, have NDIME = %d", dim)
	}
	if _, EToV, err = readElements(reader); err != nil {
		return
	}
	if VX, VY, err = readVertices(reader); err != nil {
		return
	}
	if bcs, err = readBCs(reader); err != nil {
		return
	}
	if tm, err = geometry2D.NewTriMesh(VX, VY, EToV); err != nil {
		return
	}
	err = markBoundary(tm, bcs, markerMap, "SU2")
	return
}

// markBoundary tags the boundary edges of tm from the labelled edge lists of a mesh file
func markBoundary(tm *geometry2D.TriMesh, bcs map[string][]types.EdgeKey, markerMap map[string]int, format string) (err error) {
	markers := make(map[types.EdgeKey]int)
	for label, edges := range bcs {
		m, ok := markerMap[strings.ToLower(label)]
		if !ok {
			return fmt.Errorf("no boundary marker for %s tag \"%s\"", format, label)
		}
		for _, ek := range edges {
			markers[ek] = m
		}
	}
	for i := range tm.BEdges {
		if m, ok := markers[types.NewEdgeKey(tm.BEdges[i].V)]; ok {
			tm.BEdges[i].Marker = m
		}
	}
	if n := tm.Unmarked(); n != 0 {
		jww.WARN.Printf("%d boundary edges carry no marker and will be treated as walls\n", n)
		for i := range tm.BEdges {
			if tm.BEdges[i].Marker == geometry2D.MarkerNone {
				tm.BEdges[i].Marker = geometry2D.MarkerWall
			}
		}
	}
	return
}

func ReadSU2(filename string, markerMap map[string]int) (tm *geometry2D.TriMesh, err error) {
	var (
		file *os.File
	)
	jww.INFO.Printf("Reading SU2 file named: %s\n", filename)
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	if tm, err = ParseSU2(bufio.NewReader(file), markerMap); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	jww.INFO.Printf("Read %d triangles and %d vertices\n", tm.NumElements(), tm.NumVertices())
	return
}
