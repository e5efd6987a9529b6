package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	Mode          string  `mapstructure:"mode"`
	OutputDir     string  `mapstructure:"output_dir"`
	JPEGQuality   int     `mapstructure:"jpeg_quality"`
	SDRWhiteNits  float64 `mapstructure:"sdr_white_nits"`
	EncodeWorkers int     `mapstructure:"encode_workers"`
	LogLevel      string  `mapstructure:"log_level"`
	LogFormat     string  `mapstructure:"log_format"`
	LogFile       string  `mapstructure:"log_file"`
	LogMaxSizeMB  int     `mapstructure:"log_max_size_mb"`
}

func Default() *Config {
	return &Config{
		Mode:          "auto",
		OutputDir:     ".",
		JPEGQuality:   85,
		EncodeWorkers: 4,
		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  10,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hdrcap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HDRCAP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("mode", cfg.Mode)
	viper.Set("output_dir", cfg.OutputDir)
	viper.Set("jpeg_quality", cfg.JPEGQuality)
	viper.Set("sdr_white_nits", cfg.SDRWhiteNits)
	viper.Set("encode_workers", cfg.EncodeWorkers)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_file", cfg.LogFile)
	viper.Set("log_max_size_mb", cfg.LogMaxSizeMB)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "hdrcap.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "hdrcap")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "hdrcap")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "hdrcap")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "hdrcap")
	}
}
