// Package mesh holds the scene value types shared by the loaders and the
// face collapse operation.
package mesh

import (
	"math"

	"github.com/ungerik/go3d/float64/mat4"
	"github.com/ungerik/go3d/float64/vec3"
	"github.com/ungerik/go3d/float64/vec4"
)

// Transform is an object's location, XYZ Euler rotation (degrees) and scale.
type Transform struct {
	Location vec3.T
	Rotation vec3.T
	Scale    vec3.T
}

// IdentityTransform leaves positions unchanged
var IdentityTransform = Transform{Scale: vec3.T{1, 1, 1}}

// Matrix returns the object to world matrix T * Rz * Ry * Rx * S.
func (t Transform) Matrix() mat4.T {
	sx, cx := math.Sincos(t.Rotation[0] * math.Pi / 180)
	sy, cy := math.Sincos(t.Rotation[1] * math.Pi / 180)
	sz, cz := math.Sincos(t.Rotation[2] * math.Pi / 180)

	// Columns of the rotation matrix, each scaled by its axis factor.
	col0 := vec3.T{cy * cz, cy * sz, -sy}
	col1 := vec3.T{sx*sy*cz - cx*sz, sx*sy*sz + cx*cz, sx * cy}
	col2 := vec3.T{cx*sy*cz + sx*sz, cx*sy*sz - sx*cz, cx * cy}
	col0.Scale(t.Scale[0])
	col1.Scale(t.Scale[1])
	col2.Scale(t.Scale[2])

	m := mat4.T{
		vec4.T{col0[0], col0[1], col0[2], 0},
		vec4.T{col1[0], col1[1], col1[2], 0},
		vec4.T{col2[0], col2[1], col2[2], 0},
		vec4.T{0, 0, 0, 1},
	}
	m.SetTranslation(&t.Location)
	return m
}

// MatrixFromRows builds a matrix from 16 row-major values
func MatrixFromRows(rows [16]float64) mat4.T {
	var m mat4.T
	for row := range 4 {
		for col := range 4 {
			m[col][row] = rows[row*4+col]
		}
	}
	return m
}

// ApplyWorld returns positions transformed by world.
func ApplyWorld(world *mat4.T, positions []vec3.T) []vec3.T {
	out := make([]vec3.T, len(positions))
	for i := range positions {
		out[i] = world.MulVec3(&positions[i])
	}
	return out
}
