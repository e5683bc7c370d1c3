package collapse

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"testing"

	"github.com/ungerik/go3d/float64/vec3"

	"github.com/kozaktomas/face-collapse/internal/mesh"
)

// fakeHost is an in-memory scene that records every access.
type fakeHost struct {
	objects    []mesh.Object
	faces      map[string][]mesh.Face // local space
	links      map[string]string      // linked object -> object owning its faces
	shared     map[string]bool        // objects whose faces are used by a link
	reads      map[string]int
	deleted    map[string][]int
	failDelete map[string]error
	panicOn    string
	listErr    error
	readErr    error
	messages   []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		faces:      make(map[string][]mesh.Face),
		links:      make(map[string]string),
		shared:     make(map[string]bool),
		reads:      make(map[string]int),
		deleted:    make(map[string][]int),
		failDelete: make(map[string]error),
	}
}

func (h *fakeHost) add(name string, kind mesh.Kind, t mesh.Transform, polygons ...[]vec3.T) {
	h.objects = append(h.objects, mesh.Object{Name: name, Kind: kind, World: t.Matrix()})
	for _, p := range polygons {
		h.faces[name] = append(h.faces[name], mesh.Face{Index: len(h.faces[name]), Positions: p})
	}
}

// link adds a mesh object that uses the faces of owner.
func (h *fakeHost) link(name, owner string, t mesh.Transform) {
	h.objects = append(h.objects, mesh.Object{Name: name, Kind: mesh.KindMesh, World: t.Matrix()})
	h.links[name] = owner
	h.shared[owner] = true
}

func (h *fakeHost) source(name string) string {
	if owner, ok := h.links[name]; ok {
		return owner
	}
	return name
}

func (h *fakeHost) Objects() ([]mesh.Object, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	return h.objects, nil
}

func (h *fakeHost) WorldFaces(obj mesh.Object) ([]mesh.Face, error) {
	h.reads[obj.Name]++
	if h.readErr != nil {
		return nil, h.readErr
	}
	src := h.source(obj.Name)
	var out []mesh.Face
	for _, f := range h.faces[src] {
		face := mesh.Face{Index: f.Index, Positions: mesh.ApplyWorld(&obj.World, f.Positions)}
		if h.shared[src] {
			face.Data = fmt.Sprintf("%s#%d", src, f.Index)
		}
		out = append(out, face)
	}
	return out, nil
}

func (h *fakeHost) DeleteFaces(obj mesh.Object, faces []int) (int, error) {
	if obj.Name == h.panicOn {
		panic("mesh is locked")
	}
	if err := h.failDelete[obj.Name]; err != nil {
		return 0, err
	}
	h.deleted[obj.Name] = append(h.deleted[obj.Name], faces...)
	src := h.source(obj.Name)
	before := len(h.faces[src])
	h.faces[src] = slices.DeleteFunc(h.faces[src], func(f mesh.Face) bool {
		return slices.Contains(faces, f.Index)
	})
	return before - len(h.faces[src]), nil
}

func (h *fakeHost) Notify(message string) {
	h.messages = append(h.messages, message)
}

// cube returns the six quads of an axis aligned cube with corners at +-1.
func cube() [][]vec3.T {
	return [][]vec3.T{
		{{-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}, {1, -1, -1}}, // bottom
		{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}},     // top
		{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}}, // front
		{{-1, 1, -1}, {-1, 1, 1}, {1, 1, 1}, {1, 1, -1}},     // back
		{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}, // left
		{{1, -1, -1}, {1, 1, -1}, {1, 1, 1}, {1, -1, 1}},     // right
	}
}

func at(x, y, z float64) mesh.Transform {
	return mesh.Transform{Location: vec3.T{x, y, z}, Scale: vec3.T{1, 1, 1}}
}

func triangle() []vec3.T {
	return []vec3.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
}

func TestRun_AdjacentCubes(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		collapsed int
		deleted   map[string][]int
	}{
		{
			name:      "delete all members",
			policy:    PolicyDeleteAll,
			collapsed: 2,
			deleted:   map[string][]int{"Cube": {5}, "Cube.001": {4}},
		},
		{
			name:      "keep one survivor",
			policy:    PolicyKeepOne,
			collapsed: 1,
			deleted:   map[string][]int{"Cube.001": {4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			h.add("Cube", mesh.KindMesh, at(0, 0, 0), cube()...)
			h.add("Cube.001", mesh.KindMesh, at(2, 0, 0), cube()...)

			result, err := New(h).Run(Options{Policy: tt.policy})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if result.Collapsed != tt.collapsed {
				t.Errorf("Collapsed = %d, want %d", result.Collapsed, tt.collapsed)
			}
			if len(result.Groups) != 1 || result.Groups[0].Count != 2 {
				t.Errorf("Groups = %+v, want one group of 2", result.Groups)
			}
			if len(h.deleted) != len(tt.deleted) {
				t.Errorf("deleted = %v, want %v", h.deleted, tt.deleted)
			}
			for name, want := range tt.deleted {
				if got := h.deleted[name]; !slices.Equal(got, want) {
					t.Errorf("deleted[%s] = %v, want %v", name, got, want)
				}
			}
			if result.Scanned != 12 || result.Objects != 2 {
				t.Errorf("Scanned = %d, Objects = %d, want 12 and 2", result.Scanned, result.Objects)
			}
			if result.RunID == "" {
				t.Error("expected a run ID")
			}
		})
	}
}

func TestRun_AllUnique(t *testing.T) {
	h := newFakeHost()
	h.add("Cube", mesh.KindMesh, at(0, 0, 0), cube()...)
	h.add("Cube.001", mesh.KindMesh, at(5, 5, 5), cube()...)

	result, err := New(h).Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Collapsed != 0 {
		t.Errorf("Collapsed = %d, want 0", result.Collapsed)
	}
	if len(h.deleted) != 0 {
		t.Errorf("expected no deletions, got %v", h.deleted)
	}
	if got := h.messages[len(h.messages)-1]; got != "Faces collapsed: 0" {
		t.Errorf("last message = %q, want %q", got, "Faces collapsed: 0")
	}
}

func TestRun_TripleOverlap(t *testing.T) {
	h := newFakeHost()
	h.add("A", mesh.KindMesh, at(0, 0, 0), triangle())
	h.add("B", mesh.KindMesh, at(0, 0, 0), triangle())
	h.add("C", mesh.KindMesh, at(0, 0, 0), triangle())

	result, err := New(h).Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Groups) != 1 || result.Groups[0].Count != 3 {
		t.Fatalf("Groups = %+v, want one group of 3", result.Groups)
	}
	if len(result.Groups[0].Members) != 3 {
		t.Errorf("Members = %v, want 3", result.Groups[0].Members)
	}
	if result.Collapsed != 3 {
		t.Errorf("Collapsed = %d, want 3", result.Collapsed)
	}
}

func TestRun_RotatedInPlace(t *testing.T) {
	// A cube rotated by 90 degrees lands on itself; the rotation adds
	// floating point noise that the key quantization absorbs.
	h := newFakeHost()
	h.add("Cube", mesh.KindMesh, at(0, 0, 0), cube()...)
	h.add("Cube.001", mesh.KindMesh, mesh.Transform{Rotation: vec3.T{0, 0, 90}, Scale: vec3.T{1, 1, 1}}, cube()...)

	result, err := New(h).Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Groups) != 6 {
		t.Errorf("Groups = %d, want 6", len(result.Groups))
	}
	if result.Collapsed != 12 {
		t.Errorf("Collapsed = %d, want 12", result.Collapsed)
	}
}

func TestRun_Idempotent(t *testing.T) {
	for _, policy := range []Policy{PolicyDeleteAll, PolicyKeepOne} {
		t.Run(string(policy), func(t *testing.T) {
			h := newFakeHost()
			h.add("Cube", mesh.KindMesh, at(0, 0, 0), cube()...)
			h.add("Cube.001", mesh.KindMesh, at(0, 0, 2), cube()...)
			h.add("Tri", mesh.KindMesh, at(0, 0, 0), triangle(), triangle(), triangle())

			first, err := New(h).Run(Options{Policy: policy})
			if err != nil {
				t.Fatalf("first Run() error = %v", err)
			}
			if first.Collapsed == 0 {
				t.Fatal("expected the first run to collapse faces")
			}

			second, err := New(h).Run(Options{Policy: policy})
			if err != nil {
				t.Fatalf("second Run() error = %v", err)
			}
			if second.Collapsed != 0 {
				t.Errorf("second run Collapsed = %d, want 0", second.Collapsed)
			}
		})
	}
}

func TestRun_NonMeshObjectsUntouched(t *testing.T) {
	h := newFakeHost()
	h.add("Camera", mesh.KindCamera, at(0, 0, 0), triangle())
	h.add("Light", mesh.KindLight, at(0, 0, 0))
	h.add("Mesh", mesh.KindMesh, at(0, 0, 0), triangle())

	result, err := New(h).Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if h.reads["Camera"] != 0 || h.reads["Light"] != 0 {
		t.Errorf("non-mesh objects were read: %v", h.reads)
	}
	if h.reads["Mesh"] != 1 {
		t.Errorf("mesh object read %d times, want 1", h.reads["Mesh"])
	}
	if result.Collapsed != 0 {
		t.Errorf("Collapsed = %d, want 0", result.Collapsed)
	}
	if !slices.Equal(result.Skipped, []string{"Camera", "Light"}) {
		t.Errorf("Skipped = %v, want [Camera Light]", result.Skipped)
	}
}

func TestRun_SharedMeshData(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		withCopy  bool
		collapsed int
		ownerLeft int
		copyLeft  int
	}{
		{name: "delete all, linked only", policy: PolicyDeleteAll, collapsed: 6, ownerLeft: 0},
		{name: "keep one, linked only", policy: PolicyKeepOne, collapsed: 0, ownerLeft: 6},
		{name: "delete all, with copy", policy: PolicyDeleteAll, withCopy: true, collapsed: 12, ownerLeft: 0, copyLeft: 0},
		{name: "keep one, with copy", policy: PolicyKeepOne, withCopy: true, collapsed: 6, ownerLeft: 6, copyLeft: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			h.add("A", mesh.KindMesh, at(0, 0, 0), cube()...)
			h.link("B", "A", at(0, 0, 0))
			if tt.withCopy {
				h.add("C", mesh.KindMesh, at(0, 0, 0), cube()...)
			}

			result, err := New(h).Run(Options{Policy: tt.policy})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if result.Collapsed != tt.collapsed {
				t.Errorf("Collapsed = %d, want %d", result.Collapsed, tt.collapsed)
			}
			if got := len(h.faces["A"]); got != tt.ownerLeft {
				t.Errorf("faces left in A = %d, want %d", got, tt.ownerLeft)
			}
			if tt.withCopy {
				if got := len(h.faces["C"]); got != tt.copyLeft {
					t.Errorf("faces left in C = %d, want %d", got, tt.copyLeft)
				}
			}
			if len(h.deleted["B"]) != 0 {
				t.Errorf("faces of A deleted again through B: %v", h.deleted["B"])
			}
			want := fmt.Sprintf("Faces collapsed: %d", tt.collapsed)
			if h.messages[len(h.messages)-1] != want {
				t.Errorf("summary = %q, want %q", h.messages[len(h.messages)-1], want)
			}
		})
	}
}

func TestDeleteFaces_ReportsRemovedFaces(t *testing.T) {
	h := newFakeHost()
	h.add("A", mesh.KindMesh, at(0, 0, 0), triangle())
	h.add("B", mesh.KindMesh, at(0, 0, 0), triangle())

	c := New(h)
	scan, err := c.Scan(Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	sel := scan.Select(PolicyDeleteAll, nil)
	if len(sel) != 2 {
		t.Fatalf("Select() = %+v, want 2 objects", sel)
	}

	// B's face disappeared after counting, so deleting it removes nothing.
	h.faces["B"] = nil

	removed, err := c.deleteFaces(sel[0])
	if err != nil || removed != 1 {
		t.Errorf("deleteFaces(A) = %d, %v, want 1, nil", removed, err)
	}
	removed, err = c.deleteFaces(sel[1])
	if err != nil || removed != 0 {
		t.Errorf("deleteFaces(B) = %d, %v, want 0, nil", removed, err)
	}
}

func TestRun_PerObjectFailureIsIsolated(t *testing.T) {
	h := newFakeHost()
	h.add("A", mesh.KindMesh, at(0, 0, 0), triangle())
	h.add("B", mesh.KindMesh, at(0, 0, 0), triangle())
	h.add("C", mesh.KindMesh, at(0, 0, 0), triangle())
	h.failDelete["A"] = errors.New("disk full")
	h.panicOn = "B"

	result, err := New(h).Run(Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Collapsed != 1 {
		t.Errorf("Collapsed = %d, want 1", result.Collapsed)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Errors = %v, want 2", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Error(), "disk full") {
		t.Errorf("Errors[0] = %v, want disk full", result.Errors[0])
	}
	if !errors.Is(result.Errors[1], ErrHostPanic) {
		t.Errorf("Errors[1] = %v, want ErrHostPanic", result.Errors[1])
	}
	if !slices.Equal(h.deleted["C"], []int{0}) {
		t.Errorf("deleted[C] = %v, want [0]", h.deleted["C"])
	}
	if len(result.Deletions) != 3 || result.Deletions[0].Deleted || !result.Deletions[2].Deleted {
		t.Errorf("Deletions = %+v", result.Deletions)
	}

	// Both failures and the summary reach the user.
	if len(h.messages) != 3 {
		t.Fatalf("messages = %v, want 3", h.messages)
	}
	if h.messages[2] != "Faces collapsed: 1" {
		t.Errorf("summary = %q, want %q", h.messages[2], "Faces collapsed: 1")
	}
}

func TestRun_GlobalFailure(t *testing.T) {
	tests := []struct {
		name    string
		listErr error
		readErr error
	}{
		{"listing objects fails", errors.New("scene unavailable"), nil},
		{"reading faces fails", nil, errors.New("corrupt mesh")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			h.add("A", mesh.KindMesh, at(0, 0, 0), triangle())
			h.add("B", mesh.KindMesh, at(0, 0, 0), triangle())
			h.listErr = tt.listErr
			h.readErr = tt.readErr

			result, err := New(h).Run(Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			if result != nil {
				t.Errorf("expected no result, got %+v", result)
			}
			if len(h.deleted) != 0 {
				t.Errorf("expected no deletions, got %v", h.deleted)
			}
			for _, m := range h.messages {
				if strings.HasPrefix(m, "Faces collapsed") {
					t.Errorf("unexpected summary %q after global failure", m)
				}
			}
			if len(h.messages) != 1 {
				t.Errorf("messages = %v, want the error only", h.messages)
			}
		})
	}
}

func TestRun_UnknownPolicy(t *testing.T) {
	h := newFakeHost()
	if _, err := New(h).Run(Options{Policy: "some"}); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestScan_CountAccuracy(t *testing.T) {
	h := newFakeHost()
	h.add("A", mesh.KindMesh, at(0, 0, 0), triangle(), triangle(), cube()[0])
	h.add("B", mesh.KindMesh, at(0, 0, 0), triangle(), cube()[0])

	scan, err := New(h).Scan(Options{})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	groups := scan.Groups()
	if len(groups) != 2 {
		t.Fatalf("Groups() = %+v, want 2", groups)
	}
	if groups[0].Count != 3 || groups[1].Count != 2 {
		t.Errorf("counts = %d, %d, want 3, 2", groups[0].Count, groups[1].Count)
	}
	wantMembers := []mesh.Ref{{Object: "A", Face: 0}, {Object: "A", Face: 1}, {Object: "B", Face: 0}}
	if !slices.Equal(groups[0].Members, wantMembers) {
		t.Errorf("Members = %v, want %v", groups[0].Members, wantMembers)
	}
	if scan.Faces() != 5 || scan.MeshObjects() != 2 {
		t.Errorf("Faces() = %d, MeshObjects() = %d", scan.Faces(), scan.MeshObjects())
	}
	if len(h.deleted) != 0 {
		t.Errorf("Scan must not delete, got %v", h.deleted)
	}
}

func TestRun_ProgressAndLogging(t *testing.T) {
	h := newFakeHost()
	h.add("A", mesh.KindMesh, at(0, 0, 0), triangle())
	h.add("B", mesh.KindMesh, at(0, 0, 0), triangle())
	h.add("Camera", mesh.KindCamera, at(0, 0, 0))

	var phases []string
	var logs, bar bytes.Buffer
	_, err := New(h).Run(Options{
		Progress:   &bar,
		Logger:     log.New(&logs, "", 0),
		OnProgress: func(p ProgressInfo) { phases = append(phases, p.Phase+":"+p.Object) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"counting:A", "counting:B", "counting:Camera", "deleting:A", "deleting:B"}
	if !slices.Equal(phases, want) {
		t.Errorf("progress = %v, want %v", phases, want)
	}
	if !strings.Contains(logs.String(), "enqueue face A#0") {
		t.Errorf("log output missing enqueue line:\n%s", logs.String())
	}
	if bar.Len() == 0 {
		t.Error("expected progress bar output")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input    string
		expected Policy
		wantErr  bool
	}{
		{"", PolicyDeleteAll, false},
		{"all", PolicyDeleteAll, false},
		{"keep-one", PolicyKeepOne, false},
		{"none", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParsePolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if result != tt.expected {
				t.Errorf("ParsePolicy(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
