// Package scene provides a file backed scene: mesh objects stored in
// Wavefront OBJ files, optionally placed in world space by a YAML manifest.
package scene

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ungerik/go3d/float64/mat4"

	"github.com/kozaktomas/face-collapse/internal/constants"
	"github.com/kozaktomas/face-collapse/internal/mesh"
	"github.com/kozaktomas/face-collapse/internal/objfile"
)

// ErrUnknownObject is returned for objects that are not part of the scene
var ErrUnknownObject = errors.New("unknown object")

type Options struct {
	DryRun bool                 // never write OBJ files
	Backup bool                 // copy every OBJ file to <file>.bak before its first rewrite
	Only   NameFilter           // restrict the scene to matching objects
	Notify func(message string) // user notifications, printed to stdout when nil
}

// entry ties a scene object to the OBJ data it owns
type entry struct {
	object mesh.Object
	file   *objfile.File
	faces  []*objfile.Face // flattened faces of the referenced OBJ objects
}

type Scene struct {
	opts     Options
	entries  []*entry
	byName   map[string]*entry
	backedUp map[string]bool
}

// Load builds a scene from a single OBJ file or from a YAML manifest,
// depending on the file extension.
func Load(path string, opts Options) (*Scene, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path, opts)
	case ".yaml", ".yml":
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		return FromManifest(m, filepath.Dir(path), opts)
	}
	return nil, fmt.Errorf("unsupported scene file %s (supported: .obj, .yaml, .yml)", path)
}

func newScene(opts Options) *Scene {
	return &Scene{
		opts:     opts,
		byName:   make(map[string]*entry),
		backedUp: make(map[string]bool),
	}
}

func (s *Scene) add(e *entry) {
	s.entries = append(s.entries, e)
	s.byName[e.object.Name] = e
}

func (s *Scene) taken() map[string]bool {
	taken := make(map[string]bool, len(s.byName))
	for name := range s.byName {
		taken[name] = true
	}
	return taken
}

// LoadOBJ builds a scene with one mesh object per OBJ object, all placed at
// the origin.
func LoadOBJ(path string, opts Options) (*Scene, error) {
	f, err := objfile.Load(path)
	if err != nil {
		return nil, err
	}
	s := newScene(opts)
	for _, o := range f.Objects {
		name := uniqueName(o.Name, s.taken())
		s.add(&entry{
			object: mesh.Object{Name: name, Kind: mesh.KindMesh, World: mat4.Ident},
			file:   f,
			faces:  o.Faces,
		})
	}
	return s, nil
}

// FromManifest builds a scene from a manifest. OBJ paths are resolved
// relative to dir; a file referenced by several objects is loaded once.
func FromManifest(m *Manifest, dir string, opts Options) (*Scene, error) {
	s := newScene(opts)
	files := make(map[string]*objfile.File)

	for i := range m.Objects {
		mo := &m.Objects[i]
		if mo.Name == "" {
			return nil, fmt.Errorf("object %d has no name", i)
		}
		if _, ok := s.byName[mo.Name]; ok {
			return nil, fmt.Errorf("duplicate object name: %s", mo.Name)
		}
		kind, err := mesh.ParseKind(mo.Type)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", mo.Name, err)
		}
		world, err := mo.World()
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", mo.Name, err)
		}

		e := &entry{object: mesh.Object{Name: mo.Name, Kind: kind, World: world}}
		if kind == mesh.KindMesh {
			if mo.File == "" {
				return nil, fmt.Errorf("mesh object %s has no file", mo.Name)
			}
			path := mo.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			f, ok := files[path]
			if !ok {
				if f, err = objfile.Load(path); err != nil {
					return nil, fmt.Errorf("object %s: %w", mo.Name, err)
				}
				files[path] = f
			}
			e.file = f
			if mo.Object != "" {
				o, err := f.Object(mo.Object)
				if err != nil {
					return nil, fmt.Errorf("object %s: %w", mo.Name, err)
				}
				e.faces = o.Faces
			} else {
				for _, o := range f.Objects {
					e.faces = append(e.faces, o.Faces...)
				}
			}
		}
		s.add(e)
	}
	return s, nil
}

func (s *Scene) lookup(obj mesh.Object) (*entry, error) {
	e, ok := s.byName[obj.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, obj.Name)
	}
	return e, nil
}

// Objects lists the scene objects selected by the name filter
func (s *Scene) Objects() ([]mesh.Object, error) {
	var out []mesh.Object
	for _, e := range s.entries {
		if s.opts.Only.Match(e.object.Name) {
			out = append(out, e.object)
		}
	}
	return out, nil
}

// WorldFaces returns the live faces of a mesh object transformed to world space
func (s *Scene) WorldFaces(obj mesh.Object) ([]mesh.Face, error) {
	e, err := s.lookup(obj)
	if err != nil {
		return nil, err
	}
	if e.file == nil {
		return nil, fmt.Errorf("%s is not a mesh object", obj.Name)
	}
	var out []mesh.Face
	for i, face := range e.faces {
		if face.Deleted() {
			continue
		}
		out = append(out, mesh.Face{
			Index:     i,
			Data:      faceData(e.file, face),
			Positions: mesh.ApplyWorld(&e.object.World, e.file.Positions(face)),
		})
	}
	return out, nil
}

// faceData identifies a face by the OBJ statement it was read from, so
// objects sharing an OBJ file report the same identity for shared faces.
func faceData(f *objfile.File, face *objfile.Face) string {
	return fmt.Sprintf("%s:%d", f.Path, face.Line)
}

// DeleteFaces deletes faces of a mesh object and commits the OBJ file.
// It returns the number of faces removed, which leaves out faces already
// deleted through another object sharing the same data.
// Vertices are left in place. If the commit fails the faces are restored.
func (s *Scene) DeleteFaces(obj mesh.Object, faces []int) (int, error) {
	e, err := s.lookup(obj)
	if err != nil {
		return 0, err
	}
	if e.file == nil {
		return 0, fmt.Errorf("%s is not a mesh object", obj.Name)
	}
	for _, idx := range faces {
		if idx < 0 || idx >= len(e.faces) {
			return 0, fmt.Errorf("face index %d out of range for %s (%d faces)", idx, obj.Name, len(e.faces))
		}
	}

	var changed []*objfile.Face
	for _, idx := range faces {
		if e.faces[idx].Delete() {
			changed = append(changed, e.faces[idx])
		}
	}

	if len(changed) == 0 {
		return 0, nil
	}
	if err := s.commit(e.file); err != nil {
		for _, face := range changed {
			face.Restore()
		}
		return 0, err
	}
	return len(changed), nil
}

func (s *Scene) commit(f *objfile.File) error {
	if s.opts.DryRun {
		return nil
	}
	if s.opts.Backup && !s.backedUp[f.Path] {
		if err := copyFile(f.Path, f.Path+constants.BackupSuffix); err != nil {
			return fmt.Errorf("failed to back up %s: %w", f.Path, err)
		}
		s.backedUp[f.Path] = true
	}
	return f.Save(f.Path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Notify shows a message to the user
func (s *Scene) Notify(message string) {
	if s.opts.Notify != nil {
		s.opts.Notify(message)
		return
	}
	fmt.Println(message)
}
