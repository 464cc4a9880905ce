package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is an optional YAML file carrying the same settings as the
// flags, handy for rerunning the same batch setup. Explicitly set flags
// win over profile values.
type Profile struct {
	Input         string `yaml:"input"`
	Output        string `yaml:"output"`
	Busco         bool   `yaml:"busco"`
	Lineage       string `yaml:"lineage"`
	ANI           bool   `yaml:"ani"`
	CPUs          int    `yaml:"cpus"`
	Parallel      int    `yaml:"parallel"`
	BuscoTimeout  string `yaml:"busco_timeout"`
	ANITimeout    string `yaml:"ani_timeout"`
	KeepWorkspace bool   `yaml:"keep_workspace"`
	WorkRoot      string `yaml:"work_root"`
	DB            string `yaml:"db"`
}

func LoadProfile(path string) (*Profile, error) {

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Timeouts are written as Go duration strings ("90m", "2h") so the file
// stays readable.
func parseTimeout(val string, field string) (time.Duration, error) {

	if val == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("profile %s: %w", field, err)
	}
	return d, nil
}
