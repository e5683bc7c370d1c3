package collapse

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report is the JSON document written for a run
type Report struct {
	*Result
	Scene       string    `json:"scene"`
	GeneratedAt time.Time `json:"generated_at"`
	Errors      []string  `json:"errors,omitempty"`
}

func NewReport(scene string, r *Result) *Report {
	rep := &Report{Result: r, Scene: scene, GeneratedAt: time.Now().UTC()}
	for _, err := range r.Errors {
		rep.Errors = append(rep.Errors, err.Error())
	}
	return rep
}

// ReportPath returns the report file name for a run inside dir
func ReportPath(dir string, r *Result) string {
	return filepath.Join(dir, "collapse-"+r.RunID+".json")
}

// Write stores the report as indented JSON at path
func (rep *Report) Write(path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
