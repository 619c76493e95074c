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

type ConvergenceModel struct {
	Resolutions []int
	CSVFile     string
	FromCSV     string
}

// ConvergenceCmd represents the convergence command
var ConvergenceCmd = &cobra.Command{
	Use:   "convergence",
	Short: "Observed order of accuracy on the manufactured solution",
	Long: `Solves the manufactured solution at a sequence of resolutions and prints the L2 errors of
velocity and pressure with the observed orders. A study saved with --csv can be printed again with --from.`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err     error
			cm      *ConvergenceModel
			studies []*NavierStokes2D.ConvergenceStudy
		)
		if cm, err = readConvergenceFlags(cmd.Flags()); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if studies, err = RunConvergence(cmd.Flags(), cm, viper.GetBool("verbose")); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		for _, cs := range studies {
			cs.Print()
		}
	},
}

func init() {
	rootCmd.AddCommand(ConvergenceCmd)
	addConvergenceFlags(ConvergenceCmd.Flags())
}

func addConvergenceFlags(fs *pflag.FlagSet) {
	fs.IntSlice("res", []int{4, 8, 16}, "elements per side of the unit square")
	fs.String("csv", "", "save the study to this CSV file")
	fs.String("from", "", "print the orders of a saved CSV study instead of solving")
	fs.String("nls", "newton", "nonlinear solver: newton or picard")
	fs.String("pcd", "BRM1", "PCD strategy: BRM1 or BRM2 (ESW)")
	fs.String("ls", "direct", "sub-solves of the field split: direct or iterative")
	fs.Float64("alpha", 1, "convective form, 1 for (u.grad)u, 0 for div(u u)")
	addSolverFlags(fs)
}

func readConvergenceFlags(fs *pflag.FlagSet) (cm *ConvergenceModel, err error) {
	cm = &ConvergenceModel{}
	if cm.Resolutions, err = fs.GetIntSlice("res"); err != nil {
		return
	}
	for i, n := range cm.Resolutions {
		if n < 1 || (i > 0 && n <= cm.Resolutions[i-1]) {
			return nil, fmt.Errorf("resolutions must be positive and increasing, have %v", cm.Resolutions)
		}
	}
	if cm.CSVFile, err = fs.GetString("csv"); err != nil {
		return
	}
	cm.FromCSV, err = fs.GetString("from")
	return
}

// RunConvergence solves the manufactured problem at every resolution, or reads the studies of a CSV file
func RunConvergence(fs *pflag.FlagSet, cm *ConvergenceModel, verbose bool) (studies []*NavierStokes2D.ConvergenceStudy, err error) {
	if len(cm.FromCSV) != 0 {
		var f *os.File
		if f, err = os.Open(cm.FromCSV); err != nil {
			return
		}
		defer f.Close()
		return NavierStokes2D.ReadConvergenceCSV(f)
	}
	ip := InputParameters.NewInputParametersNS()
	ip.Problem = "manufactured"
	ip.Report = verbose
	if err = applyFlags(fs, ip); err != nil {
		return
	}
	if err = ip.Validate(); err != nil {
		return
	}
	var s NavierStokes2D.Settings
	if s, err = settings(ip); err != nil {
		return
	}
	cs := NavierStokes2D.NewConvergenceStudy(fmt.Sprintf("%s nu=%g", s.Label(), ip.Viscosity))
	for _, n := range cm.Resolutions {
		var (
			ns  *NavierStokes2D.NavierStokes
			rep NavierStokes2D.Report
		)
		if ns, err = NavierStokes2D.NewNavierStokes(NavierStokes2D.ManufacturedProblem(n, ip.Viscosity, ip.Alpha), s, verbose); err != nil {
			return
		}
		if rep, err = ns.Solve(); err != nil {
			return
		}
		cs.Add(n, rep)
	}
	studies = append(studies, cs)
	if len(cm.CSVFile) != 0 {
		var f *os.File
		if f, err = os.Create(cm.CSVFile); err != nil {
			return
		}
		defer f.Close()
		err = NavierStokes2D.WriteConvergenceCSV(f, studies...)
	}
	return
}
