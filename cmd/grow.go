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
	"time"

	"github.com/notargets/prismlayer/mesh"
	"github.com/notargets/prismlayer/shell"
	"github.com/notargets/prismlayer/tetgen"
	"github.com/notargets/prismlayer/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

type Grow struct {
	WallFile     string
	InputFile    string
	FarfieldFile string
	TetgenBase   string
	OutputBase   string
	Quality      bool
}

// GrowCmd represents the grow command
var GrowCmd = &cobra.Command{
	Use:   "grow",
	Short: "Grow a prism layer from a wall surface",
	Long: `
Grows the prism layer and writes <output>.su2 and <output>.vtk with the volume
mesh, <output>_envelope.su2 with the envelope surface for adaptation, and with
a farfield surface <output>.poly for tetgen. Tetgen output given with --tetgen
is merged into the volume mesh.

prismlayer grow -W wall.su2 -I prism.yaml -F farfield.su2 -o case`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := &Grow{
			WallFile:     viper.GetString("grow.wall"),
			InputFile:    viper.GetString("grow.input"),
			FarfieldFile: viper.GetString("grow.farfield"),
			TetgenBase:   viper.GetString("grow.tetgen"),
			OutputBase:   viper.GetString("grow.output"),
			Quality:      viper.GetBool("grow.quality"),
		}
		return RunGrow(g)
	},
}

func init() {
	rootCmd.AddCommand(GrowCmd)
	GrowCmd.Flags().StringP("wall", "W", "", "wall surface file, .su2 or gmsh 2.2 .msh")
	GrowCmd.Flags().StringP("input", "I", "", "YAML file for prism parameters like:\n\t- InitialHeight\n\t- NLayers\n\t- MaxGrowthRatio")
	GrowCmd.Flags().StringP("farfield", "F", "", "optional farfield surface file")
	GrowCmd.Flags().StringP("tetgen", "T", "", "base name of tetgen .node/.ele/.face output to merge")
	GrowCmd.Flags().StringP("output", "o", "prisms", "base name of the output files")
	GrowCmd.Flags().BoolP("quality", "q", false, "print the prism quality histogram")
	for _, name := range []string{"wall", "input", "farfield", "tetgen", "output", "quality"} {
		_ = viper.BindPFlag("grow."+name, GrowCmd.Flags().Lookup(name))
	}
}

func RunGrow(g *Grow) (err error) {
	pp, err := readParameters(g.InputFile)
	if err != nil {
		return
	}
	pp.Print()
	w, err := readWall(g.WallFile, pp)
	if err != nil {
		return
	}
	fmt.Printf("Wall: %d vertices, %d faces, tags %v\n", w.NumVertices(), w.NumFaces(), w.Tags())
	start := time.Now()
	st, err := shell.Generate(w, pp)
	if err != nil {
		var ipe *shell.InvalidPrismError
		if errors.As(err, &ipe) && st != nil && st.Grid != nil {
			// Keep the broken grid for inspection
			if m, aerr := st.Assemble(nil); aerr == nil {
				if verr := m.WriteVTKFile(g.OutputBase+"_invalid.vtk", pp.Title); verr == nil {
					jww.WARN.Printf("Invalid prisms written to %s_invalid.vtk\n", g.OutputBase)
				}
			}
		}
		return
	}
	fmt.Printf("Prism layer generated in %v\n", time.Since(start))
	if pp.QualityReport || g.Quality {
		fmt.Print(st.Quality())
	}
	var far *mesh.Mesh
	if g.FarfieldFile != "" {
		if far, err = mesh.ReadSurfaceFile(g.FarfieldFile); err != nil {
			return
		}
	}
	m, err := st.Assemble(far)
	if err != nil {
		return
	}
	if far != nil {
		plc, perr := tetgen.NewPLC(m, st.HolePoints(), "Interface", "Farfield")
		if perr != nil {
			return perr
		}
		if err = plc.WritePolyFile(g.OutputBase + ".poly"); err != nil {
			return
		}
	}
	if g.TetgenBase != "" {
		out, terr := tetgen.ReadOutput(g.TetgenBase)
		if terr != nil {
			return terr
		}
		added, terr := tetgen.AppendTetRegion(m, out, shell.FarfieldTag)
		if terr != nil {
			return terr
		}
		fmt.Printf("Merged %d tetrahedra, %d new nodes\n", len(out.Tets), added)
	}
	if err = m.WriteSU2File(g.OutputBase + ".su2"); err != nil {
		return
	}
	if err = m.WriteVTKFile(g.OutputBase+".vtk", pp.Title); err != nil {
		return
	}
	if err = st.EnvelopeSurface().WriteSU2File(g.OutputBase + "_envelope.su2"); err != nil {
		return
	}
	fmt.Printf("Wrote %s.su2: %d nodes, %d prisms, %d tetrahedra\n",
		g.OutputBase, len(m.Vertices), m.CountType(utils.Prism), m.CountType(utils.Tet))
	return
}
