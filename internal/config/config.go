package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Collapse CollapseConfig `yaml:"collapse"`
	Output   OutputConfig   `yaml:"output"`
}

type CollapseConfig struct {
	Policy string `yaml:"policy"` // "all" or "keep-one"
	Backup bool   `yaml:"backup"` // keep a .bak copy of every rewritten OBJ file
}

type OutputConfig struct {
	Progress  bool   `yaml:"progress"`   // show a progress bar while scanning
	ReportDir string `yaml:"report_dir"` // write a JSON report per run into this directory (optional)
}

// envBool reads an environment variable and parses it as a boolean.
// Returns the default value if the env var is unset, empty, or invalid.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString reads an environment variable, falling back to defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults Config
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Collapse: CollapseConfig{
			Policy: envString("COLLAPSE_POLICY", defaults.Collapse.Policy),
			Backup: envBool("COLLAPSE_BACKUP", defaults.Collapse.Backup),
		},
		Output: OutputConfig{
			Progress:  envBool("COLLAPSE_PROGRESS", defaults.Output.Progress),
			ReportDir: envString("COLLAPSE_REPORT_DIR", defaults.Output.ReportDir),
		},
	}
}
