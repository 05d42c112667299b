package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings are optional tool level settings, loaded from runscripts.yaml or
// the RUNSCRIPTS_* environment. Flags take precedence over all of them.
type Settings struct {
	OutputFile string        `mapstructure:"output_file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Journal    string        `mapstructure:"journal"`
	Verbose    bool          `mapstructure:"verbose"`
}

// DefaultOutputFile is used when neither settings nor flags name one.
const DefaultOutputFile = "results.csv"

// LoadSettings reads the settings file at path, or runscripts.yaml in the
// current directory when path is empty. A missing default file is fine, a
// missing explicit one is not.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("output_file", DefaultOutputFile)
	v.SetEnvPrefix("RUNSCRIPTS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("reading settings file: %w", err)
		}
	} else {
		v.SetConfigName("runscripts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("reading settings file: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	return s, nil
}
