package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "csstcli/internal/errors"
)

// EnvPrefix namespaces every environment variable, e.g. CSST_STORAGE_DRIVER
const EnvPrefix = "CSST"

// ConfigFileEnv names the variable pointing at a YAML config file
const ConfigFileEnv = "CSST_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Archive    ArchiveConfig    `yaml:"archive" envconfig:"ARCHIVE"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	Export     ExportConfig     `yaml:"export" envconfig:"EXPORT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// PathsConfig contains file system paths
type PathsConfig struct {
	InputDir  string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	// ProcessedDir receives input files after a successful run. Empty
	// leaves inputs in place.
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR"`
	SummaryFile  string `yaml:"summary_file" envconfig:"SUMMARY_FILE" validate:"required"`
}

// ProcessingConfig tunes loading and bucketing
type ProcessingConfig struct {
	BucketWidth float64 `yaml:"bucket_width" envconfig:"BUCKET_WIDTH" validate:"gt=0"`
	Tolerance   float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gte=0"`
	// SkipTuneAndLoad drops the samples of the first SkipHours before
	// bucketing. UseProgramDuration adds the tune and load hold times.
	SkipTuneAndLoad    bool          `yaml:"skip_tune_and_load" envconfig:"SKIP_TUNE_AND_LOAD"`
	SkipHours          float64       `yaml:"skip_hours" envconfig:"SKIP_HOURS" validate:"gte=0"`
	UseProgramDuration bool          `yaml:"use_program_duration" envconfig:"USE_PROGRAM_DURATION"`
	Workers            int           `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
	Recursive          bool          `yaml:"recursive" envconfig:"RECURSIVE"`
	Pattern            string        `yaml:"pattern" envconfig:"PATTERN"`
	FailFast           bool          `yaml:"fail_fast" envconfig:"FAIL_FAST"`
	Timeout            time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gte=0"`
}

// StorageConfig selects the experiment store
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=none memory sqlite postgres"`
	DSN    string `yaml:"dsn" envconfig:"DSN" validate:"required_if=Driver postgres"`
	// NamesFile is a YAML file of polymer and solvent aliases registered
	// with the store on startup
	NamesFile string `yaml:"names_file" envconfig:"NAMES_FILE"`
}

// ArchiveConfig selects where raw exports are archived
type ArchiveConfig struct {
	Driver          string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=none fs s3"`
	Dir             string `yaml:"dir" envconfig:"DIR" validate:"required_if=Driver fs"`
	Bucket          string `yaml:"bucket" envconfig:"BUCKET" validate:"required_if=Driver s3"`
	Region          string `yaml:"region" envconfig:"REGION"`
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"omitempty,url"`
	PathStyle       bool   `yaml:"path_style" envconfig:"PATH_STYLE"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	Prefix          string `yaml:"prefix" envconfig:"PREFIX"`
}

// TelemetryConfig controls tracing and metrics output
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Traces      string `yaml:"traces" envconfig:"TRACES" validate:"oneof=none stdout"`
	// MetricsFile is written in Prometheus text format after a run
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// ExportConfig toggles the output formats
type ExportConfig struct {
	Processed bool `yaml:"processed" envconfig:"PROCESSED"`
	Series    bool `yaml:"series" envconfig:"SERIES"`
	Workbook  bool `yaml:"workbook" envconfig:"WORKBOOK"`
	Summary   bool `yaml:"summary" envconfig:"SUMMARY"`
}

// Load builds the configuration from defaults, then the YAML file named by
// CSST_CONFIG_FILE (or the first config.yaml found), then CSST_*
// environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML file. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config from file %s", path), err)
		}
	}

	// Unset variables leave file and default values untouched
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks the struct rules of every section
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return apperrors.NewConfigError("config validation failed", err)
		}
		problems := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				problems = append(problems, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
			} else {
				problems = append(problems, fmt.Sprintf("%s failed %s", field, fe.Tag()))
			}
		}
		return apperrors.NewConfigError("config validation failed: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/csst.log",
		},
		Paths: PathsConfig{
			InputDir:    DefaultInputDir,
			OutputDir:   DefaultOutputDir,
			LogsDir:     DefaultLogsDir,
			SummaryFile: DefaultSummaryFile,
		},
		Processing: ProcessingConfig{
			BucketWidth: DefaultBucketWidth,
			SkipHours:   DefaultSkipHours,
			Workers:     DefaultWorkers,
			Pattern:     "*.csv",
		},
		Storage: StorageConfig{
			Driver: "none",
		},
		Archive: ArchiveConfig{
			Driver: "none",
			Dir:    DefaultArchiveDir,
			Region: "us-east-1",
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
			Traces:      "none",
		},
		Export: ExportConfig{
			Processed: true,
			Series:    false,
			Workbook:  false,
			Summary:   true,
		},
	}
}
