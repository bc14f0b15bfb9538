package InputParameters

import (
	"fmt"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// Parameters obtained from the YAML input file
type PrismParameters struct {
	Title                string  `json:"Title"`
	InitialHeight        float64 `json:"InitialHeight"`        // First cell height at the wall
	MaxLayerThickness    float64 `json:"MaxLayerThickness"`    // Absolute cap on the total prism stack height
	MaxRelativeHeight    float64 `json:"MaxRelativeHeight"`    // Cap on stack height relative to local mean edge length
	NLayers              int     `json:"NLayers"`              // Number of prism layers
	MaxGrowthRatio       float64 `json:"MaxGrowthRatio"`       // Upper bound on the layer expansion ratio
	UntangleGrid         bool    `json:"UntangleGrid"`         // Push grid nodes above their supporting lower layer
	WallNormalTransition float64 `json:"WallNormalTransition"` // Curved growth exponent, 0 is straight growth
	FeatureAngle         float64 `json:"FeatureAngle"`         // Degrees, dihedral deviation above which an edge is a ridge
	SharpEdgeAngle       float64 `json:"SharpEdgeAngle"`       // Degrees, dihedral deviation above which a ridge is sharp
	VerboseOptimization  bool    `json:"VerboseOptimization"`
	MaxOptimizationTime  float64 `json:"MaxOptimizationTime"` // Seconds, 0 disables the envelope optimizer

	NormalSmoothingIterations int     `json:"NormalSmoothingIterations"`
	HeightSmoothingIterations int     `json:"HeightSmoothingIterations"`
	RepairIterations          int     `json:"RepairIterations"`
	MaxNormalDeviation        float64 `json:"MaxNormalDeviation"` // Degrees, allowed cone between a growth direction and incident face normals
	MaxTwistAngle             float64 `json:"MaxTwistAngle"`      // Degrees, envelope edge vs wall edge
	MaxWarpAngle              float64 `json:"MaxWarpAngle"`       // Degrees, growth vector vs envelope triangle normal
	CollisionSafetyFactor     float64 `json:"CollisionSafetyFactor"`
	UncollideRatio            float64 `json:"UncollideRatio"`
	RetractRings              int     `json:"RetractRings"`
	SymmetryPlane             string  `json:"SymmetryPlane"` // One of "", "x", "y", "z"
	SymmetryOffset            float64 `json:"SymmetryOffset"`
	CurvatureRetries          int     `json:"CurvatureRetries"`
	GridUntangleIterations    int     `json:"GridUntangleIterations"`
	Threads                   int     `json:"Threads"` // 0 uses every CPU
	QualityReport             bool    `json:"QualityReport"`
}

func NewPrismParameters() (pp *PrismParameters) {
	pp = &PrismParameters{
		Title:                     "prism layer",
		InitialHeight:             1.e-3,
		MaxLayerThickness:         1.e30,
		MaxRelativeHeight:         1.,
		NLayers:                   10,
		MaxGrowthRatio:            1.3,
		FeatureAngle:              30,
		SharpEdgeAngle:            120,
		NormalSmoothingIterations: 10,
		HeightSmoothingIterations: 10,
		RepairIterations:          20,
		MaxNormalDeviation:        70,
		MaxTwistAngle:             45,
		MaxWarpAngle:              60,
		CollisionSafetyFactor:     1.6,
		UncollideRatio:            0.6,
		RetractRings:              2,
		CurvatureRetries:          3,
		GridUntangleIterations:    5,
	}
	return
}

// Parse overlays the YAML document on the receiver, so defaults survive for
// keys the document omits
func (pp *PrismParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, pp); err != nil {
		return errors.Wrap(err, "unable to parse prism parameters")
	}
	pp.SymmetryPlane = strings.ToLower(strings.TrimSpace(pp.SymmetryPlane))
	return pp.Validate()
}

func (pp *PrismParameters) Validate() error {
	switch {
	case pp.InitialHeight <= 0:
		return errors.Errorf("InitialHeight must be positive, have %g", pp.InitialHeight)
	case pp.NLayers < 1:
		return errors.Errorf("NLayers must be at least 1, have %d", pp.NLayers)
	case pp.MaxGrowthRatio < 1:
		return errors.Errorf("MaxGrowthRatio must be at least 1, have %g", pp.MaxGrowthRatio)
	case pp.MaxLayerThickness <= 0 || pp.MaxRelativeHeight <= 0:
		return errors.Errorf("MaxLayerThickness and MaxRelativeHeight must be positive, have %g, %g",
			pp.MaxLayerThickness, pp.MaxRelativeHeight)
	case pp.FeatureAngle <= 0 || pp.FeatureAngle >= 180:
		return errors.Errorf("FeatureAngle must be within (0, 180), have %g", pp.FeatureAngle)
	case pp.SharpEdgeAngle < pp.FeatureAngle || pp.SharpEdgeAngle >= 180:
		return errors.Errorf("SharpEdgeAngle must be within [FeatureAngle, 180), have %g", pp.SharpEdgeAngle)
	case pp.WallNormalTransition < 0:
		return errors.Errorf("WallNormalTransition must not be negative, have %g", pp.WallNormalTransition)
	case pp.MaxOptimizationTime < 0:
		return errors.Errorf("MaxOptimizationTime must not be negative, have %g", pp.MaxOptimizationTime)
	case pp.CollisionSafetyFactor < 1:
		return errors.Errorf("CollisionSafetyFactor must be at least 1, have %g", pp.CollisionSafetyFactor)
	case pp.UncollideRatio <= 0 || pp.UncollideRatio >= 1:
		return errors.Errorf("UncollideRatio must be within (0, 1), have %g", pp.UncollideRatio)
	}
	switch pp.SymmetryPlane {
	case "", "x", "y", "z":
	default:
		return errors.Errorf("SymmetryPlane must be one of x, y, z or empty, have %q", pp.SymmetryPlane)
	}
	return nil
}

// SymmetryAxis returns the coordinate index normal to the symmetry plane, -1 when there is none
func (pp *PrismParameters) SymmetryAxis() int {
	switch pp.SymmetryPlane {
	case "x":
		return 0
	case "y":
		return 1
	case "z":
		return 2
	}
	return -1
}

func (pp *PrismParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", pp.Title)
	fmt.Printf("%8.5g\t\t= InitialHeight\n", pp.InitialHeight)
	fmt.Printf("[%d]\t\t\t= NLayers\n", pp.NLayers)
	fmt.Printf("%8.5f\t\t= MaxGrowthRatio\n", pp.MaxGrowthRatio)
	fmt.Printf("%8.5g\t\t= MaxLayerThickness\n", pp.MaxLayerThickness)
	fmt.Printf("%8.5f\t\t= MaxRelativeHeight\n", pp.MaxRelativeHeight)
	fmt.Printf("%8.5f\t\t= FeatureAngle\n", pp.FeatureAngle)
	fmt.Printf("%8.5f\t\t= SharpEdgeAngle\n", pp.SharpEdgeAngle)
	fmt.Printf("%8.5f\t\t= WallNormalTransition\n", pp.WallNormalTransition)
	fmt.Printf("[%v]\t\t\t= UntangleGrid\n", pp.UntangleGrid)
	fmt.Printf("%8.5f\t\t= MaxOptimizationTime\n", pp.MaxOptimizationTime)
	if pp.SymmetryPlane != "" {
		fmt.Printf("[%s = %g]\t\t= SymmetryPlane\n", pp.SymmetryPlane, pp.SymmetryOffset)
	}
}
