package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var validModes = map[string]bool{
	"auto": true,
	"sdr":  true,
	"hdr":  true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would cause panics are clamped to safe defaults.
// Other validation errors are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.Mode != "" && !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Errorf("mode %q is not valid (use auto, sdr, hdr)", c.Mode))
	}

	if c.JPEGQuality < 1 {
		errs = append(errs, fmt.Errorf("jpeg_quality %d is below minimum 1, clamping", c.JPEGQuality))
		c.JPEGQuality = 1
	} else if c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality %d exceeds maximum 100, clamping", c.JPEGQuality))
		c.JPEGQuality = 100
	}

	if c.SDRWhiteNits < 0 {
		errs = append(errs, fmt.Errorf("sdr_white_nits %.1f is negative, resetting to auto-detect", c.SDRWhiteNits))
		c.SDRWhiteNits = 0
	} else if c.SDRWhiteNits > 0 && c.SDRWhiteNits < 80 {
		errs = append(errs, fmt.Errorf("sdr_white_nits %.1f is below minimum 80, clamping", c.SDRWhiteNits))
		c.SDRWhiteNits = 80
	} else if c.SDRWhiteNits > 1000 {
		errs = append(errs, fmt.Errorf("sdr_white_nits %.1f exceeds maximum 1000, clamping", c.SDRWhiteNits))
		c.SDRWhiteNits = 1000
	}

	if c.EncodeWorkers < 1 {
		errs = append(errs, fmt.Errorf("encode_workers %d is below minimum 1, clamping", c.EncodeWorkers))
		c.EncodeWorkers = 1
	} else if c.EncodeWorkers > 64 {
		errs = append(errs, fmt.Errorf("encode_workers %d exceeds maximum 64, clamping", c.EncodeWorkers))
		c.EncodeWorkers = 64
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.LogMaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("log_max_size_mb %d is negative, resetting to default", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 10
	}

	// Log validation errors as warnings
	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
