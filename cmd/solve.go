/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/notargets/gopcd/InputParameters"
	"github.com/notargets/gopcd/geometry2D"
	"github.com/notargets/gopcd/model_problems/NavierStokes2D"
	"github.com/notargets/gopcd/readfiles"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve one steady Navier-Stokes problem",
	Long: `Solve the backward facing step, Poiseuille channel, a manufactured solution or a flow
through a marked SU2 or Gambit mesh. Parameters come from the YAML input file, flags override them.`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			ip  *InputParameters.InputParametersNS
		)
		if ip, err = processInput(cmd.Flags()); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		ip.Print()
		if _, err = RunSolve(ip, true); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	addSolveFlags(SolveCmd.Flags())
}

func addSolveFlags(fs *pflag.FlagSet) {
	fs.StringP("inputParametersFile", "I", "", "YAML file for input parameters like:\n\t- Viscosity\n\t- NonlinearSolver\n\t- PCDStrategy")
	fs.StringP("problem", "P", "step", "problem to solve: step, channel, manufactured or mesh")
	fs.StringP("meshFile", "F", "", "mesh file to read in SU2 (.su2) or Gambit neutral (.neu) format, for problem mesh")
	fs.IntP("level", "l", 0, "number of uniform mesh refinements")
	fs.String("nls", "newton", "nonlinear solver: newton or picard")
	fs.String("pcd", "BRM1", "PCD strategy: BRM1 or BRM2 (ESW)")
	fs.String("ls", "direct", "sub-solves of the field split: direct or iterative")
	fs.Float64("alpha", 1, "convective form, 1 for (u.grad)u, 0 for div(u u)")
	addSolverFlags(fs)
}

// addSolverFlags registers the flags shared by the solve and scaling commands
func addSolverFlags(fs *pflag.FlagSet) {
	fs.Float64("nu", 0.02, "kinematic viscosity, Re = 2/nu")
	fs.Float64("stretch", 1, "grid stretch toward the step corner")
	fs.Float64("rtol", 1.e-5, "nonlinear relative tolerance")
	fs.Float64("ktol", 1.e-6, "Krylov relative tolerance")
	fs.Int("maxit", 25, "maximum nonlinear iterations")
	fs.Int("kmaxit", 100, "maximum Krylov iterations")
	fs.Int("restart", 150, "GMRES restart length")
	fs.Bool("errorOnNonconvergence", false, "abort when a Krylov or the nonlinear solve does not converge")
	fs.Bool("monitor", false, "report every Krylov iteration at debug level")
}

// processInput reads the input parameter file, when one is given, and applies the flags set on the command line
func processInput(fs *pflag.FlagSet) (ip *InputParameters.InputParametersNS, err error) {
	ip = InputParameters.NewInputParametersNS()
	var fileName string
	if fileName, err = fs.GetString("inputParametersFile"); err != nil {
		return
	}
	if len(fileName) != 0 {
		var data []byte
		if data, err = os.ReadFile(fileName); err != nil {
			return
		}
		if err = ip.Parse(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", fileName, err)
		}
	}
	if err = applyFlags(fs, ip); err != nil {
		return
	}
	err = ip.Validate()
	return
}

// applyFlags copies the scalar flags set on the command line, list valued flags of the scaling command
// are left to it
func applyFlags(fs *pflag.FlagSet, ip *InputParameters.InputParametersNS) (err error) {
	changed := func(name, kind string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed && f.Value.Type() == kind && err == nil
	}
	str := func(name string, dst *string) {
		if changed(name, "string") {
			*dst, err = fs.GetString(name)
		}
	}
	flt := func(name string, dst *float64) {
		if changed(name, "float64") {
			*dst, err = fs.GetFloat64(name)
		}
	}
	num := func(name string, dst *int) {
		if changed(name, "int") {
			*dst, err = fs.GetInt(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if changed(name, "bool") {
			*dst, err = fs.GetBool(name)
		}
	}
	str("problem", &ip.Problem)
	str("meshFile", &ip.MeshFile)
	str("nls", &ip.NonlinearSolver)
	str("pcd", &ip.PCDStrategy)
	num("level", &ip.Level)
	flt("nu", &ip.Viscosity)
	flt("alpha", &ip.Alpha)
	flt("stretch", &ip.Stretch)
	flt("rtol", &ip.RelativeTolerance)
	flt("ktol", &ip.Linear.RelativeTolerance)
	num("maxit", &ip.MaxIterations)
	num("kmaxit", &ip.Linear.MaxIterations)
	num("restart", &ip.Linear.Restart)
	boolean("monitor", &ip.Linear.Monitor)
	if changed("ls", "string") {
		var mode string
		if mode, err = fs.GetString("ls"); err == nil {
			ip.Linear.VelocitySolve, ip.Linear.PressureSolve = mode, mode
		}
	}
	if changed("errorOnNonconvergence", "bool") {
		var on bool
		if on, err = fs.GetBool("errorOnNonconvergence"); err == nil {
			ip.ErrorOnNonconvergence, ip.Linear.ErrorOnNonconvergence = on, on
		}
	}
	return
}

// settings translates validated input parameters into solver configurations
func settings(ip *InputParameters.InputParametersNS) (s NavierStokes2D.Settings, err error) {
	if s.Nonlinear, err = ip.NonlinearConfig(); err != nil {
		return
	}
	s.Linear, err = ip.LinearConfig()
	return
}

// buildCase poses the problem named in the input parameters
func buildCase(ip *InputParameters.InputParametersNS) (c *NavierStokes2D.Case, err error) {
	switch strings.ToLower(ip.Problem) {
	case "step":
		c = NavierStokes2D.StepProblem(ip.Level, ip.Stretch, ip.Viscosity, ip.Alpha)
	case "channel":
		c = NavierStokes2D.ChannelProblem(2*ip.Resolution, ip.Resolution, ip.Viscosity, ip.Alpha)
	case "manufactured":
		c = NavierStokes2D.ManufacturedProblem(ip.Resolution, ip.Viscosity, ip.Alpha)
	case "mesh":
		var markers map[string]int
		if markers, err = ip.MarkerMap(); err != nil {
			return
		}
		var tm *geometry2D.TriMesh
		if strings.EqualFold(filepath.Ext(ip.MeshFile), ".neu") {
			tm, err = readfiles.ReadGambit(ip.MeshFile, markers)
		} else {
			tm, err = readfiles.ReadSU2(ip.MeshFile, markers)
		}
		if err != nil {
			return
		}
		for l := 0; l < ip.Level; l++ {
			tm = tm.Refine()
		}
		if c, err = NavierStokes2D.MeshProblem(ip.MeshFile, tm, ip.Viscosity, ip.Alpha); err != nil {
			return
		}
		c.Level = ip.Level
	default:
		err = fmt.Errorf("unknown problem \"%s\"", ip.Problem)
	}
	return
}

// RunSolve builds and solves the problem of the input parameters
func RunSolve(ip *InputParameters.InputParametersNS, verbose bool) (rep NavierStokes2D.Report, err error) {
	var (
		s  NavierStokes2D.Settings
		c  *NavierStokes2D.Case
		ns *NavierStokes2D.NavierStokes
	)
	if s, err = settings(ip); err != nil {
		return
	}
	if c, err = buildCase(ip); err != nil {
		return
	}
	if ns, err = NavierStokes2D.NewNavierStokes(c, s, verbose); err != nil {
		return
	}
	rep, err = ns.Solve()
	if verbose {
		rep.Print()
	}
	return
}
