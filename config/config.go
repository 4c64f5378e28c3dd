package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// OctosqlDir is where the configuration file and logs live. Falls back to the working directory if the home directory can't be found.
var OctosqlDir = func() string {
	dir, err := homedir.Dir()
	if err != nil {
		return ".octosql"
	}
	return filepath.Join(dir, ".octosql")
}()

const fileName = "arrowexec.yml"

type Config struct {
	Execution ExecutionConfig `yaml:"execution"`
	Output    OutputConfig    `yaml:"output"`
}

type ExecutionConfig struct {
	// BatchSize is the batch size used by sources and the re-batching filter.
	BatchSize int `yaml:"batch_size"`
	// RebatchFilter selects the re-batching filter implementation.
	RebatchFilter bool `yaml:"rebatch_filter"`
}

type OutputConfig struct {
	ColWidth int `yaml:"col_width"`
}

func Default() *Config {
	return &Config{
		Execution: ExecutionConfig{
			BatchSize:     16 * 1024,
			RebatchFilter: false,
		},
		Output: OutputConfig{
			ColWidth: 24,
		},
	}
}

// Read reads the configuration from the octosql directory, using the defaults if there is no configuration file.
func Read() (*Config, error) {
	path := filepath.Join(OctosqlDir, fileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return ReadConfig(path)
}

func ReadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open file")
	}
	defer f.Close()

	config := Default()
	if err := yaml.NewDecoder(f).Decode(config); err != nil {
		return nil, errors.Wrap(err, "couldn't decode yaml configuration")
	}
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return config, nil
}

func (config *Config) validate() error {
	if config.Execution.BatchSize <= 0 {
		return errors.Errorf("execution.batch_size must be positive, is %d", config.Execution.BatchSize)
	}
	if config.Output.ColWidth <= 0 {
		return errors.Errorf("output.col_width must be positive, is %d", config.Output.ColWidth)
	}
	return nil
}
