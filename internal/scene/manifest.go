package scene

import (
	"fmt"
	"os"

	"github.com/ungerik/go3d/float64/mat4"
	"github.com/ungerik/go3d/float64/vec3"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-collapse/internal/mesh"
)

// Manifest describes a scene made of objects whose meshes live in OBJ files
type Manifest struct {
	Objects []ManifestObject `yaml:"objects"`
}

type ManifestObject struct {
	Name     string    `yaml:"name"`
	Type     string    `yaml:"type"`     // mesh (default), empty, camera, light, curve
	File     string    `yaml:"file"`     // OBJ file, relative to the manifest
	Object   string    `yaml:"object"`   // OBJ object name; all objects of the file when empty
	Location []float64 `yaml:"location"` // x, y, z
	Rotation []float64 `yaml:"rotation"` // XYZ Euler angles in degrees
	Scale    []float64 `yaml:"scale"`    // x, y, z, defaults to 1
	Matrix   []float64 `yaml:"matrix"`   // 16 row-major values, overrides location/rotation/scale
}

// LoadManifest reads a YAML scene manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

func vector(field string, values []float64, def vec3.T) (vec3.T, error) {
	if values == nil {
		return def, nil
	}
	if len(values) != 3 {
		return def, fmt.Errorf("%s needs 3 values, got %d", field, len(values))
	}
	return vec3.T{values[0], values[1], values[2]}, nil
}

// World returns the object to world matrix of a manifest object
func (o *ManifestObject) World() (mat4.T, error) {
	if o.Matrix != nil {
		if len(o.Matrix) != 16 {
			return mat4.Ident, fmt.Errorf("matrix needs 16 values, got %d", len(o.Matrix))
		}
		var rows [16]float64
		copy(rows[:], o.Matrix)
		return mesh.MatrixFromRows(rows), nil
	}

	var t mesh.Transform
	var err error
	if t.Location, err = vector("location", o.Location, vec3.T{}); err != nil {
		return mat4.Ident, err
	}
	if t.Rotation, err = vector("rotation", o.Rotation, vec3.T{}); err != nil {
		return mat4.Ident, err
	}
	if t.Scale, err = vector("scale", o.Scale, vec3.T{1, 1, 1}); err != nil {
		return mat4.Ident, err
	}
	return t.Matrix(), nil
}
