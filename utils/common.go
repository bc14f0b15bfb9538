package utils

const (
	NODETOL = 1.e-12
	// Cosine of 89 degrees, the visibility limit between a growth direction and a face normal
	VisibilityCos = 0.017452406437283376
)
