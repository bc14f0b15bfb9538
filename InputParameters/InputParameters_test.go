package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrismParameters(t *testing.T) {
	{ // Defaults survive keys the document omits
		pp := NewPrismParameters()
		require.NoError(t, pp.Parse([]byte(`
Title: "hemisphere"
InitialHeight: 0.001
NLayers: 5
MaxGrowthRatio: 1.2
SymmetryPlane: Z
UntangleGrid: true
`)))
		assert.Equal(t, "hemisphere", pp.Title)
		assert.Equal(t, 5, pp.NLayers)
		assert.Equal(t, 1.2, pp.MaxGrowthRatio)
		assert.Equal(t, 30., pp.FeatureAngle)
		assert.Equal(t, 120., pp.SharpEdgeAngle)
		assert.Equal(t, 1.6, pp.CollisionSafetyFactor)
		assert.True(t, pp.UntangleGrid)
		assert.Equal(t, 2, pp.SymmetryAxis())
	}
	{ // Bad values are rejected
		bad := []string{
			"NLayers: 0",
			"InitialHeight: -1",
			"MaxGrowthRatio: 0.5",
			"FeatureAngle: 130",
			"FeatureAngle: 0",
			"SharpEdgeAngle: 180",
			"SymmetryPlane: w",
			"UncollideRatio: 1.5",
			"MaxOptimizationTime: -2",
		}
		for _, doc := range bad {
			pp := NewPrismParameters()
			assert.Error(t, pp.Parse([]byte(doc)), doc)
		}
		pp := NewPrismParameters()
		assert.Error(t, pp.Parse([]byte("NLayers: [")))
		// Any feature angle below the sharp edge angle is accepted
		pp = NewPrismParameters()
		assert.NoError(t, pp.Parse([]byte("FeatureAngle: 70")))
		assert.Equal(t, 70., pp.FeatureAngle)
	}
	assert.Equal(t, -1, NewPrismParameters().SymmetryAxis())
}
