package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	Include []string     `mapstructure:"include" yaml:"include,omitempty"`
	Health  HealthConfig `mapstructure:"health"  yaml:"health"`
	Backup  BackupConfig `mapstructure:"backup"  yaml:"backup"`
	Docker  DockerConfig `mapstructure:"docker"  yaml:"docker"`
}

// HealthConfig holds thresholds and targets for the health checks.
type HealthConfig struct {
	// Services are the systemd units checked for active state, in report order.
	Services []string `mapstructure:"services" yaml:"services"`

	// DiskThresholdPercent flags a mount as WARN at or above this usage.
	DiskThresholdPercent   float64 `mapstructure:"disk_threshold_percent"   yaml:"disk_threshold_percent"`
	MemoryThresholdPercent float64 `mapstructure:"memory_threshold_percent" yaml:"memory_threshold_percent"`
	LoadThresholdPercent   float64 `mapstructure:"load_threshold_percent"   yaml:"load_threshold_percent"`

	// MountPrefix limits the disk check to mounts under this path.
	MountPrefix string `mapstructure:"mount_prefix" yaml:"mount_prefix"`

	// AntivirusDir is the ClamAV definition directory; definitions older
	// than AntivirusMaxAgeDays raise a WARN.
	AntivirusDir        string `mapstructure:"antivirus_dir"          yaml:"antivirus_dir"`
	AntivirusMaxAgeDays int    `mapstructure:"antivirus_max_age_days" yaml:"antivirus_max_age_days"`

	// CheckTimeout bounds each individual check.
	CheckTimeout time.Duration `mapstructure:"check_timeout" yaml:"check_timeout"`
}

// ManifestEntry maps one source path to its location inside the archive.
type ManifestEntry struct {
	Source      string `mapstructure:"source"       yaml:"source"`
	ArchivePath string `mapstructure:"archive_path" yaml:"archive_path"`
}

// BackupConfig contains backup and retention options.
type BackupConfig struct {
	OutputDirectory string          `mapstructure:"output_directory" yaml:"output_directory"`
	RetentionDays   int             `mapstructure:"retention_days"   yaml:"retention_days"`
	Manifest        []ManifestEntry `mapstructure:"manifest"         yaml:"manifest"`
}

// DockerConfig holds connection settings for the container engine.
type DockerConfig struct {
	Host    string        `mapstructure:"host"    yaml:"host,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.Validate()
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c *Config) Validate() error {
	for i, entry := range c.Backup.Manifest {
		if entry.Source == "" {
			return fmt.Errorf("%w: manifest entry %d has empty source", ErrValidateConfig, i)
		}
		if entry.ArchivePath == "" {
			return fmt.Errorf("%w: manifest entry %d (%s) has empty archive_path",
				ErrValidateConfig, i, entry.Source)
		}
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("%w: retention_days must not be negative", ErrValidateConfig)
	}
	for _, pct := range []float64{
		c.Health.DiskThresholdPercent,
		c.Health.MemoryThresholdPercent,
		c.Health.LoadThresholdPercent,
	} {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("%w: thresholds must be within (0, 100]", ErrValidateConfig)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("health.disk_threshold_percent", 80)
	v.SetDefault("health.memory_threshold_percent", 85)
	v.SetDefault("health.load_threshold_percent", 90)
	v.SetDefault("health.mount_prefix", "/")
	v.SetDefault("health.antivirus_dir", "/var/lib/clamav")
	v.SetDefault("health.antivirus_max_age_days", 7)
	v.SetDefault("health.check_timeout", 10*time.Second)
	v.SetDefault("backup.output_directory", "/var/backups/config")
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("docker.timeout", 5*time.Second)
}
