package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultResultsDir is the default directory for run artifacts.
	DefaultResultsDir = "./results"

	// DefaultInstallDir is the conventional MTS installation root.
	DefaultInstallDir = "/opt/mts"

	// DefaultBinDir is the executable directory under the install root.
	DefaultBinDir = "bin"

	// DefaultEntryScript is the engine entry point under the bin directory.
	DefaultEntryScript = "startCmd.sh"

	// DefaultReportPath is the CSV report the engine writes, relative to
	// the install root.
	DefaultReportPath = "logs/testPlan.csv"

	// DefaultEngineLogLevel is the default value for the engine's
	// -levelLog flag.
	DefaultEngineLogLevel = "INFO"

	// DefaultStoreMethod is the default value for the engine's
	// -storageLog flag.
	DefaultStoreMethod = "FILE"

	// DefaultS3Prefix is the object key prefix run directories are
	// uploaded under and indexed from.
	DefaultS3Prefix = "runs"
)

// Config is the root configuration for mtsoor.
type Config struct {
	Global GlobalConfig `yaml:"global"`
	Engine EngineConfig `yaml:"engine"`
	Runner RunnerConfig `yaml:"runner"`
	API    APIConfig    `yaml:"api,omitempty"`
	Upload *S3Config    `yaml:"upload,omitempty"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// EngineConfig describes the installed MTS engine.
type EngineConfig struct {
	InstallDir  string `yaml:"install_dir"`
	BinDir      string `yaml:"bin_dir"`
	EntryScript string `yaml:"entry_script"`
	ReportPath  string `yaml:"report_path"`
	LogLevel    string `yaml:"log_level"`
	StoreMethod string `yaml:"store_method"`
}

// BinPath returns the absolute path of the engine executable directory.
func (e *EngineConfig) BinPath() string {
	return filepath.Join(e.InstallDir, e.BinDir)
}

// EntryPath returns the absolute path of the engine entry script.
func (e *EngineConfig) EntryPath() string {
	return filepath.Join(e.BinPath(), e.EntryScript)
}

// AbsReportPath returns the absolute path of the engine's CSV report.
func (e *EngineConfig) AbsReportPath() string {
	return filepath.Join(e.InstallDir, e.ReportPath)
}

// RunnerConfig contains run orchestration settings.
type RunnerConfig struct {
	ResultsDir string `yaml:"results_dir"`
	// EngineLogsToStdout mirrors the engine console output to stdout in
	// addition to the per-run console.log.
	EngineLogsToStdout bool `yaml:"engine_logs_to_stdout"`
	// Database, when set, makes the runner record finished runs in
	// the index directly.
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// S3Config contains S3-compatible storage settings. It is used both for
// uploading run artifacts and as an indexing source.
type S3Config struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty"`
	ACL             string `yaml:"acl,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Engine.InstallDir == "" {
		c.Engine.InstallDir = DefaultInstallDir
	}

	if c.Engine.BinDir == "" {
		c.Engine.BinDir = DefaultBinDir
	}

	if c.Engine.EntryScript == "" {
		c.Engine.EntryScript = DefaultEntryScript
	}

	if c.Engine.ReportPath == "" {
		c.Engine.ReportPath = DefaultReportPath
	}

	if c.Engine.LogLevel == "" {
		c.Engine.LogLevel = DefaultEngineLogLevel
	}

	if c.Engine.StoreMethod == "" {
		c.Engine.StoreMethod = DefaultStoreMethod
	}

	if c.Runner.ResultsDir == "" {
		c.Runner.ResultsDir = DefaultResultsDir
	}

	c.API.applyDefaults()

	// Local-only API deployments index and serve the runner's results
	// directory unless told otherwise.
	if c.API.Indexing != nil && c.API.Indexing.ResultsDir == "" &&
		c.API.Indexing.S3 == nil {
		c.API.Indexing.ResultsDir = c.Runner.ResultsDir
	}

	if c.API.Files != nil && c.API.Files.ResultsDir == "" &&
		c.API.Files.S3 == nil {
		c.API.Files.ResultsDir = c.Runner.ResultsDir
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.Engine.InstallDir) {
		return fmt.Errorf("engine install_dir %q must be absolute", c.Engine.InstallDir)
	}

	if c.Runner.ResultsDir != "" {
		dir := filepath.Dir(c.Runner.ResultsDir)
		if dir != "." && dir != ".." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("results directory parent %q does not exist", dir)
			}
		}
	}

	if c.Runner.Database != nil {
		if err := c.Runner.Database.Validate(); err != nil {
			return fmt.Errorf("runner database: %w", err)
		}
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if c.Upload != nil && c.Upload.Bucket == "" {
		return fmt.Errorf("upload bucket is required")
	}

	return nil
}
