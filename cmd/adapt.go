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

	"github.com/notargets/prismlayer/adapt"
	"github.com/notargets/prismlayer/mesh"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Adapt struct {
	WallFile     string
	InputFile    string
	EnvelopeFile string
	RefinedFile  string
	OutputFile   string
}

// AdaptCmd represents the adapt command
var AdaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Carry a refined envelope surface back onto the wall",
	Long: `
Maps a refined copy of the envelope written by grow back onto the wall surface
it was grown from and writes the adapted wall, ready to grow again.

prismlayer adapt -W wall.su2 -E case_envelope.su2 -R refined.su2 -o wall_adapted.su2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := &Adapt{
			WallFile:     viper.GetString("adapt.wall"),
			InputFile:    viper.GetString("adapt.input"),
			EnvelopeFile: viper.GetString("adapt.envelope"),
			RefinedFile:  viper.GetString("adapt.refined"),
			OutputFile:   viper.GetString("adapt.output"),
		}
		return RunAdapt(a)
	},
}

func init() {
	rootCmd.AddCommand(AdaptCmd)
	AdaptCmd.Flags().StringP("wall", "W", "", "wall surface the envelope was grown from")
	AdaptCmd.Flags().StringP("input", "I", "", "YAML prism parameters, for the symmetry plane")
	AdaptCmd.Flags().StringP("envelope", "E", "", "envelope surface written by grow")
	AdaptCmd.Flags().StringP("refined", "R", "", "refined envelope surface")
	AdaptCmd.Flags().StringP("output", "o", "wall_adapted.su2", "adapted wall file")
	for _, name := range []string{"wall", "input", "envelope", "refined", "output"} {
		_ = viper.BindPFlag("adapt."+name, AdaptCmd.Flags().Lookup(name))
	}
}

func RunAdapt(a *Adapt) (err error) {
	if a.EnvelopeFile == "" || a.RefinedFile == "" {
		return errors.New("must supply the envelope (-E) and refined envelope (-R) surfaces")
	}
	pp, err := readParameters(a.InputFile)
	if err != nil {
		return
	}
	w, err := readWall(a.WallFile, pp)
	if err != nil {
		return
	}
	env, err := mesh.ReadSurfaceFile(a.EnvelopeFile)
	if err != nil {
		return
	}
	refined, err := mesh.ReadSurfaceFile(a.RefinedFile)
	if err != nil {
		return
	}
	pts, tris, markers, err := refined.Triangles()
	if err != nil {
		return errors.Wrap(err, "refined envelope")
	}
	aw, err := adapt.AdaptWall(w, env.Points(), pts, tris, w.RankTags(markers))
	if err != nil {
		return
	}
	if err = aw.Mesh().WriteSU2File(a.OutputFile); err != nil {
		return
	}
	fmt.Printf("Wrote %s: %d vertices, %d faces\n", a.OutputFile, aw.NumVertices(), aw.NumFaces())
	return
}
