// Package collapse finds faces that coincide with another face in world space
// and deletes them.
//
// A run makes two passes over every face of every mesh object in the scene.
// The first pass counts how many faces share each canonical key, the second
// selects every face whose key was seen more than once. Selected faces are
// then deleted per object in a single batch.
package collapse

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-collapse/internal/constants"
	"github.com/kozaktomas/face-collapse/internal/facekey"
	"github.com/kozaktomas/face-collapse/internal/mesh"
)

// Host gives the collapse operation access to a scene.
type Host interface {
	// Objects lists every object of the scene, mesh or not
	Objects() ([]mesh.Object, error)
	// WorldFaces returns the faces of a mesh object in world space
	WorldFaces(obj mesh.Object) ([]mesh.Face, error)
	// DeleteFaces removes the faces with the given indices, commits the mesh
	// and returns how many faces were actually removed.
	// Vertices and edges still used by other faces are kept.
	DeleteFaces(obj mesh.Object, faces []int) (int, error)
	// Notify shows a message to the user
	Notify(message string)
}

// Policy decides which members of a coincidence group are deleted
type Policy string

const (
	// PolicyDeleteAll deletes every face of a group with more than one member
	PolicyDeleteAll Policy = "all"
	// PolicyKeepOne keeps the first enumerated face of each group
	PolicyKeepOne Policy = "keep-one"
)

// ParsePolicy parses a policy name. An empty name is PolicyDeleteAll.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyDeleteAll:
		return PolicyDeleteAll, nil
	case PolicyKeepOne:
		return PolicyKeepOne, nil
	}
	return "", fmt.Errorf("unknown policy: %s (supported: all, keep-one)", s)
}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase   string // "counting", "deleting"
	Current int
	Total   int
	Object  string
}

type Options struct {
	Policy     Policy
	Progress   io.Writer          // progress bar output, nil disables the bar
	OnProgress func(ProgressInfo) // Optional progress callback
	Logger     *log.Logger        // diagnostics, nil discards them
}

// Group is a set of faces sharing one canonical key
type Group struct {
	Key     facekey.Key `json:"key"`
	Count   int         `json:"count"`
	Members []mesh.Ref  `json:"members"`
}

// ObjectResult holds the outcome for one mesh object with selected faces
type ObjectResult struct {
	Object  string `json:"object"`
	Faces   []int  `json:"faces"`
	Removed int    `json:"removed"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

type Result struct {
	RunID     string         `json:"run_id"`
	Policy    Policy         `json:"policy"`
	Collapsed int            `json:"collapsed"`
	Scanned   int            `json:"scanned_faces"`
	Objects   int            `json:"mesh_objects"`
	Skipped   []string       `json:"skipped_objects,omitempty"`
	Groups    []Group        `json:"groups,omitempty"`
	Deletions []ObjectResult `json:"deletions,omitempty"`
	Errors    []error        `json:"-"`
}

// Summary returns the line reported to the user after a run
func (r *Result) Summary() string {
	return fmt.Sprintf(constants.SummaryFormat, r.Collapsed)
}

// scannedObject keeps the keys computed while counting, so faces are read
// once per run.
type scannedObject struct {
	object mesh.Object
	faces  []int
	data   []string
	keys   []facekey.Key
}

// faceID identifies the stored polygon behind a counted face. Faces without
// shared data are identified by their scene reference.
type faceID struct {
	data string
	ref  mesh.Ref
}

func (so *scannedObject) id(j int) faceID {
	if so.data[j] != "" {
		return faceID{data: so.data[j]}
	}
	return faceID{ref: mesh.Ref{Object: so.object.Name, Face: so.faces[j]}}
}

// Scan is the outcome of the counting pass
type Scan struct {
	Table   *Table
	Skipped []string
	objects []scannedObject
}

// Collapser runs the collapse operation against a host
type Collapser struct {
	host Host
}

func New(host Host) *Collapser {
	return &Collapser{host: host}
}

func logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return log.New(io.Discard, "", 0)
}

// Scan counts the canonical keys of every face of every mesh object.
// Non-mesh objects are skipped without being read.
func (c *Collapser) Scan(opts Options) (*Scan, error) {
	lg := logger(opts)

	objects, err := c.host.Objects()
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(objects),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("Scanning objects"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("objects"),
			progressbar.OptionFullWidth(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	scan := &Scan{Table: NewTable()}
	for i, obj := range objects {
		if bar != nil {
			_ = bar.Add(1)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{Phase: "counting", Current: i + 1, Total: len(objects), Object: obj.Name})
		}

		if !obj.IsMesh() {
			lg.Printf("skipping %s object %s", obj.Kind, obj.Name)
			scan.Skipped = append(scan.Skipped, obj.Name)
			continue
		}

		faces, err := c.host.WorldFaces(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to read faces of %s: %w", obj.Name, err)
		}

		so := scannedObject{
			object: obj,
			faces:  make([]int, len(faces)),
			data:   make([]string, len(faces)),
			keys:   make([]facekey.Key, len(faces)),
		}
		for j, face := range faces {
			key := facekey.Build(face.Positions)
			so.faces[j] = face.Index
			so.data[j] = face.Data
			so.keys[j] = key
			scan.Table.Add(key)
		}
		lg.Printf("counted %d faces of %s", len(faces), obj.Name)
		scan.objects = append(scan.objects, so)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	return scan, nil
}

// Faces returns the number of faces counted
func (s *Scan) Faces() int {
	return s.Table.Total()
}

// MeshObjects returns the number of mesh objects counted
func (s *Scan) MeshObjects() int {
	return len(s.objects)
}

// Groups returns every coincidence group with more than one member,
// in first-seen order.
func (s *Scan) Groups() []Group {
	index := make(map[facekey.Key]int)
	var groups []Group
	for _, gc := range s.Table.Duplicates() {
		index[gc.Key] = len(groups)
		groups = append(groups, Group{Key: gc.Key, Count: gc.Count})
	}
	for _, so := range s.objects {
		for j, key := range so.keys {
			if gi, ok := index[key]; ok {
				groups[gi].Members = append(groups[gi].Members, mesh.Ref{Object: so.object.Name, Face: so.faces[j]})
			}
		}
	}
	return groups
}

// Selection is the deletion set of one object
type Selection struct {
	Object mesh.Object
	Faces  []int
}

// Select walks the counted faces again, in the same order, and returns the
// deletion set of every object that has at least one selected face.
//
// A polygon shared by several objects is selected once, through the first
// object that enumerates it. With PolicyKeepOne the first face of every group
// survives, and so does every face sharing its data.
func (s *Scan) Select(policy Policy, lg *log.Logger) []Selection {
	kept := make(map[faceID]bool)
	if policy == PolicyKeepOne {
		survivors := make(map[facekey.Key]bool)
		for i := range s.objects {
			so := &s.objects[i]
			for j, key := range so.keys {
				if s.Table.Count(key) > 1 && !survivors[key] {
					survivors[key] = true
					kept[so.id(j)] = true
				}
			}
		}
	}

	selected := make(map[faceID]bool)
	var out []Selection
	for i := range s.objects {
		so := &s.objects[i]
		var faces []int
		for j, key := range so.keys {
			if s.Table.Count(key) <= 1 {
				continue
			}
			id := so.id(j)
			if kept[id] || selected[id] {
				continue
			}
			selected[id] = true
			if lg != nil {
				lg.Printf("enqueue face %s to delete with group %s", mesh.Ref{Object: so.object.Name, Face: so.faces[j]}, key)
			}
			faces = append(faces, so.faces[j])
		}
		if len(faces) > 0 {
			out = append(out, Selection{Object: so.object, Faces: faces})
		}
	}
	return out
}

// Run counts, selects and deletes coincident faces, then notifies the user
// with the number of faces collapsed.
//
// A failure to delete the faces of one object is recorded in Result.Errors
// and does not stop the other objects. A failure while listing objects or
// reading faces aborts the run.
func (c *Collapser) Run(opts Options) (*Result, error) {
	lg := logger(opts)

	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}

	scan, err := c.Scan(opts)
	if err != nil {
		c.host.Notify(err.Error())
		return nil, err
	}

	for _, g := range scan.Table.Duplicates() {
		lg.Printf("%s: %d", g.Key, g.Count)
	}

	result := &Result{
		RunID:   uuid.NewString(),
		Policy:  policy,
		Scanned: scan.Faces(),
		Objects: scan.MeshObjects(),
		Skipped: scan.Skipped,
		Groups:  scan.Groups(),
	}

	selections := scan.Select(policy, lg)
	for i, sel := range selections {
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{Phase: "deleting", Current: i + 1, Total: len(selections), Object: sel.Object.Name})
		}

		or := ObjectResult{Object: sel.Object.Name, Faces: sel.Faces}
		removed, err := c.deleteFaces(sel)
		if err != nil {
			err = fmt.Errorf("failed to delete faces of %s: %w", sel.Object.Name, err)
			lg.Print(err)
			or.Error = err.Error()
			result.Errors = append(result.Errors, err)
			c.host.Notify(err.Error())
		} else {
			or.Deleted = true
			or.Removed = removed
			result.Collapsed += removed
		}
		result.Deletions = append(result.Deletions, or)
	}

	c.host.Notify(result.Summary())
	return result, nil
}

// ErrHostPanic is returned when the host panics while deleting faces.
var ErrHostPanic = errors.New("host panicked")

// deleteFaces isolates one object's delete and commit from the others.
func (c *Collapser) deleteFaces(sel Selection) (removed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			removed, err = 0, fmt.Errorf("%w: %v", ErrHostPanic, r)
		}
	}()
	return c.host.DeleteFaces(sel.Object, sel.Faces)
}
