package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/rect-transformer/pkg/node"
	"github.com/menta2k/rect-transformer/pkg/transform"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Config holds the application configuration
type Config struct {
	Node      NodeConfig        `yaml:"node"`
	Transform transform.Options `yaml:"transform"`
	Vision    VisionConfig      `yaml:"vision"`
	Output    OutputConfig      `yaml:"output"`
}

// NodeConfig holds the input wiring of the transform node
type NodeConfig struct {
	Inputs []string `yaml:"inputs"`
}

// Detection backends
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendSaliency = "saliency"
)

// VisionConfig holds configuration for subject detection
type VisionConfig struct {
	Backend     string `yaml:"backend"`
	// URL of the model server; empty selects the backend's default.
	URL         string `yaml:"url"`
	Model       string `yaml:"model"`
	SendFormat  string `yaml:"send_format"`
	SendSize    int    `yaml:"send_size"`
	SendQuality int    `yaml:"send_quality"`
}

// OutputConfig holds configuration for ROI output images
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	Format       string `yaml:"format"`
	Quality      int    `yaml:"quality"`
	Lossless     bool   `yaml:"lossless"`
	Upright      bool   `yaml:"upright"`
	DebugOverlay bool   `yaml:"debug_overlay"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Inputs: []string{node.TagNormRect, node.TagImageSize},
		},
		Transform: transform.DefaultOptions(),
		Vision: VisionConfig{
			Backend:     BackendOllama,
			Model:       "openbmb/minicpm-v4.5",
			SendFormat:  "jpg",
			SendSize:    1536,
			SendQuality: 85,
		},
		Output: OutputConfig{
			Dir:     "./out",
			Format:  "jpg",
			Quality: 90,
			Upright: true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
// ${VAR} and ${VAR:-default} references are expanded from the environment.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Contract returns the node wiring described by node.inputs.
func (c *Config) Contract() (node.Contract, error) {
	contract, err := node.ParseContract(c.Node.Inputs)
	if err != nil {
		return node.Contract{}, fmt.Errorf("node.inputs: %w", err)
	}
	return contract, nil
}

// Validate checks the node wiring and the transform options. It does the
// same setup checks a node performs, so a valid file always yields a node.
func (c *Config) Validate() error {
	contract, err := c.Contract()
	if err != nil {
		return err
	}
	if err := contract.Validate(); err != nil {
		return fmt.Errorf("node.inputs: %w", err)
	}

	if _, err := c.Transform.Config(); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}
	switch c.Vision.Backend {
	case BackendOllama, BackendLlamaCpp, BackendSaliency:
	default:
		return fmt.Errorf("vision.backend must be one of %q, %q, %q, got %q",
			BackendOllama, BackendLlamaCpp, BackendSaliency, c.Vision.Backend)
	}
	if c.Vision.SendSize < 0 {
		return fmt.Errorf("vision.send_size must not be negative")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "rect-transformer", "config.yaml")
}

func substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(sub[1]); ok {
			return value
		}
		return sub[2]
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}
