package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/notargets/gopcd/types"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solveFlags(t *testing.T, args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("solve", pflag.ContinueOnError)
	addSolveFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func scalingFlags(t *testing.T, args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("scaling", pflag.ContinueOnError)
	addScalingFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestSolve(t *testing.T) {
	{ // Test flags override the input parameter file
		file := filepath.Join(t.TempDir(), "input.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`
Title: Poiseuille
Problem: channel
Resolution: 2
Viscosity: 0.5
NonlinearSolver: picard
`), 0644))
		ip, err := processInput(solveFlags(t, "-I", file, "--nu", "0.1", "--ls", "iterative", "--errorOnNonconvergence"))
		require.NoError(t, err)
		assert.Equal(t, "channel", ip.Problem)
		assert.Equal(t, "picard", ip.NonlinearSolver)
		assert.Equal(t, 0.1, ip.Viscosity)
		assert.Equal(t, "iterative", ip.Linear.VelocitySolve)
		assert.Equal(t, "iterative", ip.Linear.PressureSolve)
		assert.True(t, ip.ErrorOnNonconvergence)
		assert.True(t, ip.Linear.ErrorOnNonconvergence)
		// Unset flags leave the file alone
		assert.Equal(t, 2, ip.Resolution)
		assert.Equal(t, 1., ip.Alpha)
	}
	{ // Test invalid input is refused before solving
		_, err := processInput(solveFlags(t, "--nls", "secant"))
		assert.Error(t, err)
		_, err = processInput(solveFlags(t, "-I", filepath.Join(t.TempDir(), "missing.yaml")))
		assert.Error(t, err)
		_, err = processInput(solveFlags(t, "-P", "mesh"))
		assert.Error(t, err)
	}
	{ // Test the channel problem solves end to end
		ip, err := processInput(solveFlags(t, "-P", "channel", "--nu", "0.1"))
		require.NoError(t, err)
		ip.Resolution = 2
		ip.Report = false
		rep, err := RunSolve(ip, false)
		require.NoError(t, err)
		assert.True(t, rep.Summary.Converged)
		assert.Less(t, rep.ErrorU, 1.e-4)
		assert.Equal(t, "channel", rep.Name)
	}
	{ // Test a missing mesh file surfaces as an error
		ip, err := processInput(solveFlags(t, "-P", "mesh", "-F", filepath.Join(t.TempDir(), "none.su2")))
		require.Error(t, err)
		ip.Markers = map[string]string{"inlet": "inflow", "outlet": "outflow", "wall": "wall"}
		require.NoError(t, ip.Validate())
		_, err = RunSolve(ip, false)
		assert.Error(t, err)
	}
	{ // Test Gambit meshes are read by extension and refined
		file := filepath.Join(t.TempDir(), "square.neu")
		require.NoError(t, os.WriteFile(file, []byte(gambitSquare), 0644))
		input := filepath.Join(t.TempDir(), "input.yaml")
		require.NoError(t, os.WriteFile(input, []byte(`
Problem: mesh
Markers:
  inlet: inflow
  outlet: outflow
  wall: wall
`), 0644))
		ip, err := processInput(solveFlags(t, "-I", input, "-F", file, "-l", "1"))
		require.NoError(t, err)
		c, err := buildCase(ip)
		require.NoError(t, err)
		assert.Equal(t, 8, c.Problem.Mesh.NumElements())
		assert.Equal(t, 1, c.Level)
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
                             inlet       1       1       0       6
       2       3       3
ENDOFSECTION
 BOUNDARY CONDITIONS 2.4.6
                            outlet       1       1       0       6
       1       3       2
ENDOFSECTION
 BOUNDARY CONDITIONS 2.4.6
                              wall       1       2       0       6
       1       3       1
       2       3       2
ENDOFSECTION
`

func convergenceFlags(t *testing.T, args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("convergence", pflag.ContinueOnError)
	addConvergenceFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestConvergence(t *testing.T) {
	{ // Test resolutions must increase
		_, err := readConvergenceFlags(convergenceFlags(t, "--res", "8,4"))
		assert.Error(t, err)
		_, err = readConvergenceFlags(convergenceFlags(t, "--res", "0,4"))
		assert.Error(t, err)
	}
	{ // Test a study is solved, saved and read back
		file := filepath.Join(t.TempDir(), "study.csv")
		fs := convergenceFlags(t, "--res", "2,4", "--nu", "0.5", "--rtol", "1e-10", "--ktol", "1e-10", "--csv", file)
		cm, err := readConvergenceFlags(fs)
		require.NoError(t, err)
		studies, err := RunConvergence(fs, cm, false)
		require.NoError(t, err)
		require.Len(t, studies, 1)
		require.Len(t, studies[0].Points, 2)
		assert.Less(t, studies[0].Points[1].ErrorU, studies[0].Points[0].ErrorU)

		fs = convergenceFlags(t, "--from", file)
		cm, err = readConvergenceFlags(fs)
		require.NoError(t, err)
		read, err := RunConvergence(fs, cm, false)
		require.NoError(t, err)
		require.Len(t, read, 1)
		assert.Equal(t, studies[0].Points, read[0].Points)
	}
}

func TestScaling(t *testing.T) {
	{ // Test the flag lists expand into every combination
		fs := scalingFlags(t, "--nls", "picard", "--pcd", "BRM1,BRM2", "--ls", "direct", "--alpha", "1,0.5", "--nu", "0.1")
		sm, err := readScalingFlags(fs)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2, 3}, sm.Levels)
		ss, err := newScalingStudy(fs, sm, false)
		require.NoError(t, err)
		require.Len(t, ss.Cases, 4)
		assert.Equal(t, 0.1, ss.Nu)
		assert.Equal(t, types.Picard, ss.Cases[0].Settings.Nonlinear.Type)
		assert.Equal(t, types.BRM2, ss.Cases[1].Settings.Nonlinear.PCDVariant)
		assert.Equal(t, 0.5, ss.Cases[3].Alpha)
		assert.False(t, ss.Cases[0].Settings.Nonlinear.Report)
	}
	{ // Test out of range levels and unknown names
		_, err := readScalingFlags(scalingFlags(t, "--levels", "0,5"))
		assert.Error(t, err)
		fs := scalingFlags(t, "--pcd", "BRM7")
		sm, err := readScalingFlags(fs)
		require.NoError(t, err)
		_, err = newScalingStudy(fs, sm, false)
		assert.Error(t, err)
	}
	{ // Test a single level study runs with counters and writes the figures
		file := filepath.Join(t.TempDir(), "scaling.png")
		fs := scalingFlags(t, "--levels", "0", "--nls", "newton", "--pcd", "BRM2", "--ls", "direct",
			"--alpha", "1", "--nu", "0.1", "--perf", "--plot", file)
		sm, err := readScalingFlags(fs)
		require.NoError(t, err)
		ss, err := newScalingStudy(fs, sm, false)
		require.NoError(t, err)
		require.NoError(t, RunScaling(ss, sm))
		_, err = os.Stat(file)
		assert.NoError(t, err)
	}
	{ // Test profiles are named
		assert.Error(t, startProfile("gpu"))
		assert.NoError(t, startProfile(""))
	}
}
