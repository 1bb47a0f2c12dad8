// Package conf loads and validates the application configuration from
// config.yaml and environment variables via viper.
package conf

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joelefrain/gura-forge/internal/errors"
)

// LogSettings configures the application log file.
type LogSettings struct {
	Enabled bool
	Path    string
}

// MainSettings holds the top-level application settings.
type MainSettings struct {
	Name string
	Log  LogSettings
}

// FilterSettings is one named filter definition to register in the store.
type FilterSettings struct {
	Name         string
	Type         string
	LowCutoff    float64 `mapstructure:"lowcutoff"`
	HighCutoff   float64 `mapstructure:"highcutoff"`
	Order        int
	TaperType    string  `mapstructure:"tapertype"`
	TaperPercent float64 `mapstructure:"taperpercent"`
}

// ResponseSettings defines the oscillator grid.
type ResponseSettings struct {
	PeriodMin   float64 `mapstructure:"periodmin"`
	PeriodMax   float64 `mapstructure:"periodmax"`
	PeriodCount int     `mapstructure:"periodcount"`
	Dampings    []float64
}

// Periods expands the grid definition into log-spaced period values.
func (r *ResponseSettings) Periods() []float64 {
	if r.PeriodCount < 2 {
		return []float64{r.PeriodMin}
	}
	out := make([]float64, r.PeriodCount)
	logMin := math.Log10(r.PeriodMin)
	step := (math.Log10(r.PeriodMax) - logMin) / float64(r.PeriodCount-1)
	for i := range out {
		out[i] = math.Pow(10, logMin+float64(i)*step)
	}
	return out
}

// SpectralSettings configures the windowed-FFT analysis.
type SpectralSettings struct {
	Window        string
	NFFT          int  `mapstructure:"nfft"`
	WithResultant bool `mapstructure:"withresultant"`
}

// CoherenceSettings configures the Welch coherence estimate.
type CoherenceSettings struct {
	Window        string
	SegmentLength int `mapstructure:"segmentlength"`
	Overlap       float64
}

// StabilitySettings configures the segment-wise stability analysis.
type StabilitySettings struct {
	Window   string
	Segments int
	Overlap  float64
}

// ProcessingSettings groups everything the pipeline needs.
type ProcessingSettings struct {
	Filters       []FilterSettings
	ProcessTypes  []string `mapstructure:"processtypes"`
	Response      ResponseSettings
	Spectral      SpectralSettings
	Coherence     CoherenceSettings
	Stability     StabilitySettings
	MaxConcurrent int `mapstructure:"maxconcurrent"`
}

// SQLiteSettings configures the SQLite output backend.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings configures the MySQL output backend.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// OutputSettings selects and configures the database backend.
type OutputSettings struct {
	SQLite SQLiteSettings `mapstructure:"sqlite"`
	MySQL  MySQLSettings  `mapstructure:"mysql"`
}

// Settings is the full application configuration.
type Settings struct {
	Debug      bool
	Main       MainSettings
	Processing ProcessingSettings
	Output     OutputSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a fresh
// Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("guraforge")
	viper.AutomaticEnv()

	for _, path := range GetDefaultConfigPaths() {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// working directory first.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gura-forge"))
	}
	return paths
}

// createDefaultConfig writes the default configuration to the preferred
// config path so the first run leaves an editable file behind.
func createDefaultConfig() error {
	configDir := GetDefaultConfigPaths()[0]
	if configDir != "." {
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}
	configPath := filepath.Join(configDir, "config.yaml")

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	return SaveYAMLConfig(configPath, settings)
}

// SaveYAMLConfig writes settings to configPath atomically. Comments in an
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()
	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}
	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the settings instance under a read lock.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
