package ptycho

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the reconstruction parameters.
type Config struct {
	ObjectRows   int `json:"object_rows" yaml:"object_rows" validate:"gt=0"`
	ObjectCols   int `json:"object_cols" yaml:"object_cols" validate:"gt=0"`
	ProbeSize    int `json:"probe_size" yaml:"probe_size" validate:"gt=0"`
	DetectorRows int `json:"detector_rows" yaml:"detector_rows" validate:"gt=0"`
	DetectorCols int `json:"detector_cols" yaml:"detector_cols" validate:"gt=0"`
	NumAngles    int `json:"num_angles" yaml:"num_angles" validate:"gt=0"`
	NumScan      int `json:"num_scan" yaml:"num_scan" validate:"gt=0"`

	// AnglePartition is the number of angles solved together (ptheta).
	// NumAngles must be a multiple of it.
	AnglePartition int `json:"angle_partition" yaml:"angle_partition" validate:"gt=0"`

	// ProbePeak is the peak probe amplitude used to seed the object step
	// as 1/ProbePeak². Zero derives it from the current probe of each angle.
	ProbePeak float64 `json:"probe_peak" yaml:"probe_peak" validate:"gte=0"`

	Iterations   int        `json:"iterations" yaml:"iterations" validate:"gte=0"`
	NoiseModel   NoiseModel `json:"noise_model" yaml:"noise_model" validate:"required,oneof=gaussian poisson"`
	RecoverProbe bool       `json:"recover_probe" yaml:"recover_probe"`

	// StallLimit stops a partition after this many consecutive iterations
	// in which every line search returned a zero step. Zero never stops.
	StallLimit int `json:"stall_limit" yaml:"stall_limit" validate:"gte=0"`

	// LogInterval is the iteration spacing of progress log lines. Zero
	// logs only the last iteration.
	LogInterval int `json:"log_interval" yaml:"log_interval" validate:"gte=0"`
}

var configValidate = validator.New()

// DefaultConfig returns a small single-angle gaussian configuration.
func DefaultConfig() Config {
	return Config{
		ObjectRows:     96,
		ObjectCols:     128,
		ProbeSize:      32,
		DetectorRows:   32,
		DetectorCols:   32,
		NumAngles:      1,
		NumScan:        300,
		AnglePartition: 1,
		Iterations:     64,
		NoiseModel:     Gaussian,
		LogInterval:    8,
	}
}

// Validate checks field ranges and cross-field consistency.
func (c Config) Validate() error {
	if err := c.NoiseModel.Validate(); err != nil {
		return err
	}
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrConfig, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.NumAngles%c.AnglePartition != 0 {
		return fmt.Errorf("%w: %d angles, partition %d", ErrPartition, c.NumAngles, c.AnglePartition)
	}
	return c.Geometry().Validate()
}

// Geometry returns the operator geometry for one angle partition.
func (c Config) Geometry() Geometry {
	return Geometry{
		ObjectRows:   c.ObjectRows,
		ObjectCols:   c.ObjectCols,
		ProbeSize:    c.ProbeSize,
		DetectorRows: c.DetectorRows,
		DetectorCols: c.DetectorCols,
		NumScan:      c.NumScan,
		Batch:        c.AnglePartition,
	}
}

// Partitions returns the number of angle partitions.
func (c Config) Partitions() int {
	return c.NumAngles / c.AnglePartition
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}
