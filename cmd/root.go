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
	"io/ioutil"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/notargets/prismlayer/InputParameters"
	"github.com/notargets/prismlayer/mesh"
	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
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
	Use:   "prismlayer",
	Short: "Hybrid prismatic boundary layer mesh generator",
	Long: `
Grows layers of prism elements outward from a closed triangulated wall surface
to an automatically computed envelope, for boundary layer resolving CFD meshes.

prismlayer sample -s box -o box.su2
prismlayer grow -W box.su2 -I prism.yaml -o box_prisms`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("verbose") {
			jww.SetStdoutThreshold(jww.LevelDebug)
		} else {
			jww.SetStdoutThreshold(jww.LevelInfo)
		}
		switch viper.GetString("profile") {
		case "cpu":
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
		case "mem":
			profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.prismlayer.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print per iteration detail")
	rootCmd.PersistentFlags().String("profile", "", "write a cpu or mem profile to the working directory")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".prismlayer")
	}
	viper.SetEnvPrefix("prismlayer")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// readParameters overlays the YAML input file, when there is one, on the defaults
func readParameters(filename string) (pp *InputParameters.PrismParameters, err error) {
	pp = InputParameters.NewPrismParameters()
	if filename == "" {
		return
	}
	var data []byte
	if data, err = ioutil.ReadFile(filename); err != nil {
		return nil, err
	}
	if err = pp.Parse(data); err != nil {
		return nil, errors.Wrapf(err, "input file %s", filename)
	}
	return
}

func symmetryOf(pp *InputParameters.PrismParameters) wall.Symmetry {
	return wall.Symmetry{Axis: pp.SymmetryAxis(), Offset: pp.SymmetryOffset}
}

func readWall(filename string, pp *InputParameters.PrismParameters) (w *wall.WallMesh, err error) {
	if filename == "" {
		return nil, errors.New("must supply a wall surface file (-W, --wall) in .su2 or gmsh 2.2 .msh format")
	}
	var m *mesh.Mesh
	if m, err = mesh.ReadSurfaceFile(filename); err != nil {
		return
	}
	return wall.FromMesh(m, symmetryOf(pp))
}
