// Package objfile reads and writes Wavefront OBJ files.
//
// Only geometric vertices, faces and object boundaries are interpreted. Every
// other statement is kept verbatim so that writing a file back after deleting
// faces changes nothing but the deleted face lines.
package objfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ungerik/go3d/float64/vec3"

	"github.com/kozaktomas/face-collapse/internal/constants"
)

// ErrNoObject is returned when a named object is not part of the file
var ErrNoObject = errors.New("object not found")

// File is a parsed OBJ file
type File struct {
	Path     string
	Vertices []vec3.T
	Objects  []*Object
	lines    []line
}

// Object is a named run of faces started by an `o` statement.
// Faces before the first `o` statement belong to an object named after the file.
type Object struct {
	Name  string
	Faces []*Face
}

// Face is one `f` statement
type Face struct {
	Index   int   // position within its object
	Line    int   // 1-based line number of the `f` statement
	Corners []int // 0-based indices into File.Vertices
	deleted bool
}

// Deleted reports whether the face was removed
func (f *Face) Deleted() bool {
	return f.deleted
}

// Delete removes the face from the file. It returns false if the face was
// already deleted.
func (f *Face) Delete() bool {
	if f.deleted {
		return false
	}
	f.deleted = true
	return true
}

// Restore brings back a deleted face
func (f *Face) Restore() {
	f.deleted = false
}

type line struct {
	text string
	face *Face
}

// defaultObjectName derives an object name from an OBJ file path
func defaultObjectName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "default"
	}
	return name
}

// Load reads and parses the OBJ file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := Parse(bytes.NewReader(data), defaultObjectName(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse parses OBJ data. defaultName names the object holding faces that
// appear before any `o` statement.
func Parse(r io.Reader, defaultName string) (*File, error) {
	f := &File{}
	var current *Object

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		fields := strings.Fields(text)
		ln := line{text: text}

		if len(fields) > 0 {
			switch fields[0] {
			case "v":
				v, err := parseVertex(fields[1:])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				f.Vertices = append(f.Vertices, v)
			case "o":
				name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "o"))
				if name == "" {
					name = defaultName
				}
				current = &Object{Name: name}
				f.Objects = append(f.Objects, current)
			case "f":
				corners, err := parseFace(fields[1:], len(f.Vertices))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				if current == nil {
					current = &Object{Name: defaultName}
					f.Objects = append(f.Objects, current)
				}
				face := &Face{Index: len(current.Faces), Line: lineNo, Corners: corners}
				current.Faces = append(current.Faces, face)
				ln.face = face
			}
		}
		f.lines = append(f.lines, ln)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return f, nil
}

func parseVertex(fields []string) (vec3.T, error) {
	var v vec3.T
	if len(fields) < 3 {
		return v, fmt.Errorf("vertex needs 3 coordinates, got %d", len(fields))
	}
	for i := range 3 {
		c, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, fmt.Errorf("invalid vertex coordinate %q: %w", fields[i], err)
		}
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return v, fmt.Errorf("vertex coordinate %q is not finite", fields[i])
		}
		v[i] = c
	}
	return v, nil
}

// parseFace resolves `v`, `v/vt`, `v//vn` and `v/vt/vn` corner references,
// including negative indices relative to the vertices read so far.
func parseFace(fields []string, vertexCount int) ([]int, error) {
	if len(fields) < constants.MinFaceVertices {
		return nil, fmt.Errorf("face needs at least %d vertices, got %d", constants.MinFaceVertices, len(fields))
	}
	corners := make([]int, len(fields))
	for i, field := range fields {
		ref, _, _ := strings.Cut(field, "/")
		n, err := strconv.Atoi(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid face vertex %q: %w", field, err)
		}
		switch {
		case n > 0:
			n--
		case n < 0:
			n += vertexCount
		default:
			return nil, fmt.Errorf("index 0 face vertex found, indices start with 1")
		}
		if n < 0 || n >= vertexCount {
			return nil, fmt.Errorf("face vertex %q out of range (%d vertices)", field, vertexCount)
		}
		corners[i] = n
	}
	return corners, nil
}

// Object returns the object with the given name
func (f *File) Object(name string) (*Object, error) {
	for _, o := range f.Objects {
		if o.Name == name {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoObject, name)
}

// Positions returns the corner positions of a face in file space
func (f *File) Positions(face *Face) []vec3.T {
	out := make([]vec3.T, len(face.Corners))
	for i, c := range face.Corners {
		out[i] = f.Vertices[c]
	}
	return out
}

// LiveFaces returns the faces of o that have not been deleted
func (o *Object) LiveFaces() []*Face {
	var out []*Face
	for _, face := range o.Faces {
		if !face.deleted {
			out = append(out, face)
		}
	}
	return out
}

// DeleteFaces marks the faces with the given indices as deleted and returns
// how many were live before the call. Vertices are never removed.
func (o *Object) DeleteFaces(indices []int) (int, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= len(o.Faces) {
			return 0, fmt.Errorf("face index %d out of range for %s (%d faces)", idx, o.Name, len(o.Faces))
		}
	}
	n := 0
	for _, idx := range indices {
		if o.Faces[idx].Delete() {
			n++
		}
	}
	return n, nil
}

// WriteTo writes the file, leaving out deleted faces
func (f *File) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, ln := range f.lines {
		if ln.face != nil && ln.face.deleted {
			continue
		}
		n, err := bw.WriteString(ln.text)
		written += int64(n)
		if err != nil {
			return written, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return written, err
		}
		written++
	}
	return written, bw.Flush()
}

// Save writes the file to path atomically: the content goes to a temporary
// file in the same directory which then replaces path.
func (f *File) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
