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

	"github.com/notargets/prismlayer/wall"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// SampleCmd represents the sample command
var SampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a sample wall surface",
	Long: `
Writes one of the reference wall surfaces as an SU2 surface mesh. The
hemisphere is open on the z = 0 plane and needs SymmetryPlane: z.

prismlayer sample -s slot -n 6 -o slot.su2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shape, _ := cmd.Flags().GetString("shape")
		n, _ := cmd.Flags().GetInt("resolution")
		out, _ := cmd.Flags().GetString("output")
		w, err := sampleWall(shape, n)
		if err != nil {
			return err
		}
		if err = w.Mesh().WriteSU2File(out); err != nil {
			return err
		}
		fmt.Printf("Wrote %s %s: %d vertices, %d faces\n", shape, out, w.NumVertices(), w.NumFaces())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(SampleCmd)
	SampleCmd.Flags().StringP("shape", "s", "box", "one of box, lblock, slot, sphere, hemisphere, cone")
	SampleCmd.Flags().IntP("resolution", "n", 4, "resolution, cells along an edge or latitude bands")
	SampleCmd.Flags().StringP("output", "o", "sample.su2", "output file")
}

func sampleWall(shape string, n int) (w *wall.WallMesh, err error) {
	if n < 3 {
		return nil, errors.Errorf("resolution must be at least 3, have %d", n)
	}
	h := 1. / float64(n)
	switch shape {
	case "box":
		w = wall.Box(n, n, n, h)
	case "lblock":
		w = wall.LBlock(n, n, n, h)
	case "slot":
		w = wall.Slot(n, n, n, n/2, h)
	case "sphere":
		w = wall.Sphere(1, n, 2*n)
	case "hemisphere":
		w = wall.Hemisphere(1, n, 2*n)
	case "cone":
		w = wall.Cone(1, 2, 4*n)
	default:
		return nil, errors.Errorf("unknown sample shape %q", shape)
	}
	return
}
