package readfiles

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/notargets/gopcd/geometry2D"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGambit(t *testing.T) {
	parse := func(file string, markerMap map[string]int) (*geometry2D.TriMesh, error) {
		return ParseGambit(bufio.NewReader(strings.NewReader(file)), markerMap)
	}
	{ // Test the unit square with its markers
		tm, err := parse(gambitSquare, DefaultMarkerMap)
		require.NoError(t, err)
		assert.Equal(t, 2, tm.NumElements())
		assert.Equal(t, 4, tm.NumVertices())
		assert.InDelta(t, 1., tm.Area(), 1.e-12)
		require.Len(t, tm.BEdges, 4)
		assert.Equal(t, 0, tm.Unmarked())
		for _, be := range tm.BEdges {
			x0, x1 := tm.VX[be.V[0]], tm.VX[be.V[1]]
			switch {
			case x0 == 0 && x1 == 0:
				assert.Equal(t, geometry2D.MarkerInflow, be.Marker)
			case x0 == 1 && x1 == 1:
				assert.Equal(t, geometry2D.MarkerOutflow, be.Marker)
			default:
				assert.Equal(t, geometry2D.MarkerWall, be.Marker)
			}
		}
	}
	{ // Test unknown boundary names are reported
		_, err := parse(gambitSquare, map[string]int{"wall": geometry2D.MarkerWall})
		assert.Error(t, err)
	}
	{ // Test malformed files are reported, not read past
		_, err := parse(strings.Replace(gambitSquare, "       2  3  3        1       3       4",
			"       2  5  4        1       3       4", 1), DefaultMarkerMap)
		assert.Error(t, err)
		_, err = parse(gambitSquare[:len(gambitSquare)/2], DefaultMarkerMap)
		assert.Error(t, err)
	}
	{ // Test reading from a file
		file := filepath.Join(t.TempDir(), "square.neu")
		require.NoError(t, os.WriteFile(file, []byte(gambitSquare), 0644))
		tm, err := ReadGambit(file, DefaultMarkerMap)
		require.NoError(t, err)
		assert.Equal(t, 2, tm.NumElements())
		_, err = ReadGambit(filepath.Join(t.TempDir(), "none.neu"), DefaultMarkerMap)
		assert.Error(t, err)
	}
}

var gambitSquare = `        CONTROL INFO 2.4.6
** GAMBIT NEUTRAL FILE
square
PROGRAM:                Gambit     VERSION:  2.4.6
Oct 2026
     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL
         4         2         1         3         2         2
ENDOFSECTION
   NODAL COORDINATES 2.4.6
         1  0.00000000000e+00  0.00000000000e+00
         2  1.00000000000e+00  0.00000000000e+00
         3  1.00000000000e+00  1.00000000000e+00
         4  0.00000000000e+00  1.00000000000e+00
ENDOFSECTION
      ELEMENTS/CELLS 2.4.6
       1  3  3        1       2       3
       2  3  3        1       3       4
ENDOFSECTION
       ELEMENT GROUP 2.4.6
GROUP:          1 ELEMENTS:          2 MATERIAL:          2 NFLAGS:          1
                           fluid
       0
       1       2
ENDOFSECTION
 BOUNDARY CONDITIONS 2.4.6
                            Inflow       1       1       0       6
       2       3       3
ENDOFSECTION
 BOUNDARY CONDITIONS 2.4.6
                           Outflow       1       1       0       6
       1       3       2
ENDOFSECTION
 BOUNDARY CONDITIONS 2.4.6
                              Wall       1       2       0       6
       1       3       1
       2       3       2
ENDOFSECTION
`
