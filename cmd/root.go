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
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/notargets/gopcd/utils"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	profiler interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gopcd",
	Short: "Steady Navier-Stokes solver with PCD preconditioned Krylov iterations",
	Long: `Solves the steady incompressible Navier-Stokes equations with Taylor-Hood elements.
Each Newton or Picard correction is solved by GMRES, right preconditioned with a
block upper triangular field split whose Schur complement is approximated by the
pressure convection-diffusion (PCD) operator Mp^-1 Fp Ap^-1.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		configureLogging(viper.GetBool("verbose"))
		if np := viper.GetInt("parallel"); np > 0 {
			utils.SetParallelDegree(np)
		}
		return startProfile(viper.GetString("profile"))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
			profiler = nil
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gopcd.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "report every nonlinear iteration")
	rootCmd.PersistentFlags().IntP("parallel", "p", 0, "number of go routines for sparse kernels, 0 uses all CPUs")
	rootCmd.PersistentFlags().String("profile", "", "write a profile of the run: cpu or mem")
	for _, name := range []string{"verbose", "parallel", "profile"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".gopcd" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".gopcd")
	}

	viper.SetEnvPrefix("gopcd")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func configureLogging(verbose bool) {
	if verbose {
		jww.SetStdoutThreshold(jww.LevelInfo)
	} else {
		jww.SetStdoutThreshold(jww.LevelWarn)
	}
}

func startProfile(kind string) (err error) {
	switch strings.ToLower(kind) {
	case "":
		return
	case "cpu":
		profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	default:
		err = fmt.Errorf("unknown profile \"%s\", choose one of cpu, mem", kind)
	}
	return
}
