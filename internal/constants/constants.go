// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Canonical key ordering weights.
// Vertices of a face are sorted by x*OrderWeightX + y*OrderWeightY + z.
const (
	OrderWeightX = 10000.0
	OrderWeightY = 100.0
)

// Canonical key quantization constants
const (
	// KeyDecimals is the number of decimal digits each coordinate is rounded to
	KeyDecimals = 5

	// KeyScale is the factor applied to a rounded coordinate before it is
	// truncated to an integer
	KeyScale = 10000.0
)

// Mesh constants
const (
	// MinFaceVertices is the smallest number of corners a valid face can have
	MinFaceVertices = 3
)

// Output constants
const (
	// SummaryFormat is the single human-readable line reported after a run
	SummaryFormat = "Faces collapsed: %d"

	// BackupSuffix is appended to an OBJ file name when a backup copy is kept
	BackupSuffix = ".bak"
)
