package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// JourneyFile lists journeys by step name.
//
//	journeys:
//	  - name: register-login-summary
//	    steps:
//	      - step: register
//	      - step: verify-overview
//	        disabled: true
type JourneyFile struct {
	Journeys []JourneySpec `yaml:"journeys"`
}

// JourneySpec is one journey entry.
type JourneySpec struct {
	Name     string     `yaml:"name"`
	Disabled bool       `yaml:"disabled,omitempty"`
	Steps    []StepSpec `yaml:"steps"`
}

// StepSpec is one step entry.
type StepSpec struct {
	Step     string `yaml:"step"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// EnabledSteps lists the step names that are not disabled, in file order.
func (j JourneySpec) EnabledSteps() []string {
	var names []string
	for _, s := range j.Steps {
		if !s.Disabled {
			names = append(names, s.Step)
		}
	}
	return names
}

// Enabled returns the journeys that are not disabled.
func (f *JourneyFile) Enabled() []JourneySpec {
	var out []JourneySpec
	for _, j := range f.Journeys {
		if !j.Disabled {
			out = append(out, j)
		}
	}
	return out
}

// LoadJourneyFile reads and validates a journey file.
func LoadJourneyFile(path string) (*JourneyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journey file: %w", err)
	}
	f, err := ParseJourneyFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseJourneyFile decodes a journey file, rejecting unknown keys.
func ParseJourneyFile(r io.Reader) (*JourneyFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f JourneyFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, &ValidationError{Errors: []string{"journey file is empty"}}
		}
		return nil, fmt.Errorf("decode journey file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names are present and unique and every enabled journey has
// at least one enabled step. Step names are resolved later, by the catalog.
func (f *JourneyFile) Validate() error {
	var errs []string
	if len(f.Journeys) == 0 {
		errs = append(errs, "journeys: at least one journey is required")
	}
	seen := make(map[string]bool)
	for i, j := range f.Journeys {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("journeys[%d]: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("journeys[%d]: duplicate name %q", i, name))
		}
		seen[name] = true

		for k, s := range j.Steps {
			if strings.TrimSpace(s.Step) == "" {
				errs = append(errs, fmt.Sprintf("journeys[%d].steps[%d]: step is required", i, k))
			}
		}
		if !j.Disabled && len(j.EnabledSteps()) == 0 {
			errs = append(errs, fmt.Sprintf("journey %q has no enabled steps", name))
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
