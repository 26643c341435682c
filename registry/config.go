package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bruce-robotics/bruce-acceptor/types"
)

func loadPlatformsConfig(path string) (*types.PlatformsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform config %s: %w", path, err)
	}
	var cfg types.PlatformsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse platform config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// rawStep accepts both the scalar and the list form of a test step, so a
// single-command step can be written as `command: echo ok` without wrapping
// it in a one-element list.
type rawStep struct {
	Name     string   `yaml:"name"`
	Command  string   `yaml:"command"`
	Commands []string `yaml:"commands"`
}

type rawSpec struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Steps       []rawStep `yaml:"steps"`
}

type testsFile struct {
	TestCases map[string]rawSpec `yaml:"test_cases"`
}

// LoadTestSpecs reads a test definition file and returns the specs keyed by
// their identifier (the map key in the file).
func LoadTestSpecs(path string) (map[string]types.TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test config %s: %w", path, err)
	}
	var file testsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse test config %s: %w", path, err)
	}

	out := make(map[string]types.TestSpec, len(file.TestCases))
	for id, raw := range file.TestCases {
		spec := types.TestSpec{
			ID:          id,
			Name:        raw.Name,
			Description: raw.Description,
		}
		if spec.Name == "" {
			spec.Name = id
		}
		for i, rs := range raw.Steps {
			step, err := normalizeStep(rs)
			if err != nil {
				return nil, fmt.Errorf("test [%s] step %d: %w", id, i, err)
			}
			spec.Steps = append(spec.Steps, step)
		}
		if len(spec.Steps) == 0 {
			return nil, fmt.Errorf("test [%s] has no steps", id)
		}
		out[id] = spec
	}
	return out, nil
}

func normalizeStep(raw rawStep) (types.TestStep, error) {
	if raw.Name == "" {
		return types.TestStep{}, fmt.Errorf("step name is required")
	}
	if raw.Command != "" && len(raw.Commands) > 0 {
		return types.TestStep{}, fmt.Errorf("step %q sets both command and commands", raw.Name)
	}
	commands := raw.Commands
	if raw.Command != "" {
		commands = []string{raw.Command}
	}
	if len(commands) == 0 {
		return types.TestStep{}, fmt.Errorf("step %q has no commands", raw.Name)
	}
	return types.TestStep{Name: raw.Name, Commands: commands}, nil
}
