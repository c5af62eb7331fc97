package config

import (
	"fmt"
	"time"

	"github.com/kubescape/tombstone-agent/pkg/dropboxwatcher"
	"github.com/kubescape/tombstone-agent/pkg/exporters"
	"github.com/kubescape/tombstone-agent/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const ConfigDirEnvVar = "CONFIG_DIR"
const DefaultConfigDir = "/etc/config"

type Config struct {
	TombstoneDir                        string                    `mapstructure:"tombstoneDir"`
	HistoricalLog                       dropboxwatcher.Config     `mapstructure:"historicalLog"`
	PackagesListPath                    string                    `mapstructure:"packagesListPath"`
	SystemPackages                      []string                  `mapstructure:"systemPackages"`
	ProcRoot                            string                    `mapstructure:"procRoot"`
	PolicyStorePath                     string                    `mapstructure:"policyStorePath"`
	ShowSystemProcessCrashNotifications bool                      `mapstructure:"showSystemProcessCrashNotifications"`
	CoreSystemProcess                   string                    `mapstructure:"coreSystemProcess"`
	BenignCrashAllowlist                []string                  `mapstructure:"benignCrashAllowlist"`
	MemoryTagging                       string                    `mapstructure:"memoryTagging"`
	WorkerPoolSize                      int                       `mapstructure:"workerPoolSize"`
	EnablePrometheusExporter            bool                      `mapstructure:"prometheusExporterEnabled"`
	MetricsAddr                         string                    `mapstructure:"metricsAddr"`
	HealthPort                          int                       `mapstructure:"healthPort"`
	Exporters                           exporters.ExportersConfig `mapstructure:"exporters"`
}

// LoadConfig reads config.json from path, falling back to defaults and
// environment variables for missing keys.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("tombstoneDir", "/data/tombstones")
	v.SetDefault("historicalLog.dir", dropboxwatcher.DefaultDir)
	v.SetDefault("historicalLog.tag", dropboxwatcher.DefaultTag)
	v.SetDefault("historicalLog.scanInterval", dropboxwatcher.DefaultScanInterval)
	v.SetDefault("historicalLog.maxEntrySize", dropboxwatcher.DefaultMaxEntrySize)
	v.SetDefault("packagesListPath", "/data/system/packages.list")
	v.SetDefault("procRoot", "/proc")
	v.SetDefault("policyStorePath", "/data/system/tombstone-agent/policy.db")
	v.SetDefault("showSystemProcessCrashNotifications", true)
	v.SetDefault("coreSystemProcess", "system_server")
	v.SetDefault("benignCrashAllowlist", []string{"bootanimation"})
	v.SetDefault("memoryTagging", utils.MemoryTaggingAuto)
	v.SetDefault("workerPoolSize", 4)
	v.SetDefault("metricsAddr", ":8080")
	v.SetDefault("healthPort", 7888)

	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs error
	switch c.MemoryTagging {
	case utils.MemoryTaggingAuto, utils.MemoryTaggingEnabled, utils.MemoryTaggingDisabled:
	default:
		errs = multierr.Append(errs, fmt.Errorf("memoryTagging must be one of auto, enabled, disabled, got %q", c.MemoryTagging))
	}
	if c.CoreSystemProcess == "" {
		errs = multierr.Append(errs, fmt.Errorf("coreSystemProcess is required"))
	}
	if c.WorkerPoolSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("workerPoolSize must be positive, got %d", c.WorkerPoolSize))
	}
	if c.HistoricalLog.ScanInterval < time.Second {
		errs = multierr.Append(errs, fmt.Errorf("historicalLog.scanInterval must be at least 1s, got %s", c.HistoricalLog.ScanInterval))
	}
	if c.HistoricalLog.MaxEntrySize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("historicalLog.maxEntrySize must be positive, got %d", c.HistoricalLog.MaxEntrySize))
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("healthPort out of range: %d", c.HealthPort))
	}
	return errs
}
