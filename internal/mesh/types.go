package mesh

import (
	"fmt"
	"strings"

	"github.com/ungerik/go3d/float64/mat4"
	"github.com/ungerik/go3d/float64/vec3"
)

// Kind is the type of a scene object
type Kind string

const (
	KindMesh   Kind = "mesh"
	KindEmpty  Kind = "empty"
	KindCamera Kind = "camera"
	KindLight  Kind = "light"
	KindCurve  Kind = "curve"
)

var knownKinds = []Kind{KindMesh, KindEmpty, KindCamera, KindLight, KindCurve}

// ParseKind parses an object type name case-insensitively.
// An empty name is a mesh.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindMesh, nil
	}
	for _, k := range knownKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown object type: %s", s)
}

// Object is a scene entity. Only objects of KindMesh carry faces.
type Object struct {
	Name  string
	Kind  Kind
	World mat4.T // object to world transform
}

// IsMesh reports whether the object holds polygonal geometry
func (o Object) IsMesh() bool {
	return o.Kind == KindMesh
}

// Face is a polygon of a mesh object with its corner positions in world space.
// Index identifies the face within its object and stays valid until the
// object's faces are deleted.
//
// Data identifies the stored polygon when several objects share mesh data:
// faces of different objects with the same non-empty Data are one polygon,
// and deleting it through one object deletes it from all of them.
type Face struct {
	Index     int
	Data      string
	Positions []vec3.T
}

// Ref identifies a face across the whole scene
type Ref struct {
	Object string `json:"object"`
	Face   int    `json:"face"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Object, r.Face)
}
