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

	"github.com/notargets/gopcd/InputParameters"
	"github.com/notargets/gopcd/model_problems/NavierStokes2D"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const maxScalingLevel = 4

type ScalingModel struct {
	Levels       []int
	Alphas       []float64
	Nonlinear    []string
	PCD          []string
	LinearSolves []string
	PlotFile     string
	Perf         bool
}

// ScalingCmd represents the scaling command
var ScalingCmd = &cobra.Command{
	Use:   "scaling",
	Short: "Refinement study of the PCD preconditioner on the backward facing step",
	Long: `Solves the backward facing step on a sequence of refinement levels for every combination
of nonlinear solver, PCD strategy, sub-solve mode and convective form, and reports ndofs,
Krylov iterations and times. With a mesh independent preconditioner the Krylov counts stay flat.`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
			sm  *ScalingModel
			ss  *NavierStokes2D.ScalingStudy
		)
		if sm, err = readScalingFlags(cmd.Flags()); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if ss, err = newScalingStudy(cmd.Flags(), sm, viper.GetBool("verbose")); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if err = RunScaling(ss, sm); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(ScalingCmd)
	addScalingFlags(ScalingCmd.Flags())
}

func addScalingFlags(fs *pflag.FlagSet) {
	fs.IntSliceP("levels", "l", []int{0, 1, 2, 3}, fmt.Sprintf("refinement levels, at most %d", maxScalingLevel))
	fs.Float64Slice("alpha", []float64{1, 0.5}, "convective forms, 1 for (u.grad)u, 0 for div(u u)")
	fs.StringSlice("nls", []string{"picard", "newton"}, "nonlinear solvers")
	fs.StringSlice("pcd", []string{"BRM1", "BRM2"}, "PCD strategies")
	fs.StringSlice("ls", []string{"direct", "iterative"}, "sub-solve modes of the field split")
	fs.String("plot", "", "save Krylov iterations and solve times against ndofs to this image file")
	fs.Bool("perf", false, "count CPU instructions of every solve (linux perf events)")
	addSolverFlags(fs)
}

func readScalingFlags(fs *pflag.FlagSet) (sm *ScalingModel, err error) {
	sm = &ScalingModel{}
	if sm.Levels, err = fs.GetIntSlice("levels"); err != nil {
		return
	}
	for _, l := range sm.Levels {
		if l < 0 || l > maxScalingLevel {
			return nil, fmt.Errorf("refinement level %d outside [0,%d]", l, maxScalingLevel)
		}
	}
	if sm.Alphas, err = fs.GetFloat64Slice("alpha"); err != nil {
		return
	}
	if sm.Nonlinear, err = fs.GetStringSlice("nls"); err != nil {
		return
	}
	if sm.PCD, err = fs.GetStringSlice("pcd"); err != nil {
		return
	}
	if sm.LinearSolves, err = fs.GetStringSlice("ls"); err != nil {
		return
	}
	if sm.PlotFile, err = fs.GetString("plot"); err != nil {
		return
	}
	sm.Perf, err = fs.GetBool("perf")
	return
}

// newScalingStudy expands the flag lists into one case per combination, the scalar flags apply to all
func newScalingStudy(fs *pflag.FlagSet, sm *ScalingModel, verbose bool) (ss *NavierStokes2D.ScalingStudy, err error) {
	base := InputParameters.NewInputParametersNS()
	base.Report = verbose
	if err = applyFlags(fs, base); err != nil {
		return
	}
	ss = &NavierStokes2D.ScalingStudy{
		Levels:  sm.Levels,
		Stretch: base.Stretch,
		Nu:      base.Viscosity,
		Verbose: verbose,
	}
	for _, alpha := range sm.Alphas {
		for _, nls := range sm.Nonlinear {
			for _, variant := range sm.PCD {
				for _, ls := range sm.LinearSolves {
					ip := *base
					ip.Alpha = alpha
					ip.NonlinearSolver, ip.PCDStrategy = nls, variant
					ip.Linear.VelocitySolve, ip.Linear.PressureSolve = ls, ls
					if err = ip.Validate(); err != nil {
						return nil, err
					}
					var s NavierStokes2D.Settings
					if s, err = settings(&ip); err != nil {
						return nil, err
					}
					ss.Cases = append(ss.Cases, NavierStokes2D.ScalingCase{Alpha: alpha, Settings: s})
				}
			}
		}
	}
	if len(ss.Cases) == 0 {
		return nil, fmt.Errorf("scaling study has no cases")
	}
	return
}

// RunScaling runs the study, prints the table and saves the figures
func RunScaling(ss *NavierStokes2D.ScalingStudy, sm *ScalingModel) (err error) {
	var counter *instructionCounter
	if sm.Perf {
		counter = newInstructionCounter()
		ss.Measure = counter.Measure
	}
	results, runErr := ss.Run()
	NavierStokes2D.PrintTable(results)
	if counter != nil {
		counter.Print()
	}
	if len(sm.PlotFile) != 0 && len(results) != 0 {
		if err = NavierStokes2D.PlotScaling(results, sm.PlotFile); err != nil {
			return
		}
	}
	return runErr
}
