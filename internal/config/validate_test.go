package config

import (
	"strings"
	"testing"
)

func TestValidateInvalidMode(t *testing.T) {
	cfg := Default()
	cfg.Mode = "vivid"
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected error for invalid mode")
	}
	found := false
	for _, err := range errs {
		if strings.Contains(err.Error(), "vivid") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected mode validation error naming the bad value")
	}
}

func TestValidateModeCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Mode = "HDR"
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("uppercase mode should validate, got: %v", errs)
	}
}

func TestValidateJPEGQualityClamping(t *testing.T) {
	cfg := Default()
	cfg.JPEGQuality = 0
	errs := cfg.Validate()
	if len(errs) == 0 {
		t.Fatal("expected warning for clamped quality")
	}
	if cfg.JPEGQuality != 1 {
		t.Fatalf("JPEGQuality = %d, want 1 (clamped)", cfg.JPEGQuality)
	}

	cfg = Default()
	cfg.JPEGQuality = 250
	cfg.Validate()
	if cfg.JPEGQuality != 100 {
		t.Fatalf("JPEGQuality = %d, want 100 (clamped)", cfg.JPEGQuality)
	}
}

func TestValidateWhiteLevelClamping(t *testing.T) {
	cfg := Default()
	cfg.SDRWhiteNits = -1
	cfg.Validate()
	if cfg.SDRWhiteNits != 0 {
		t.Fatalf("SDRWhiteNits = %.1f, want 0 (auto-detect)", cfg.SDRWhiteNits)
	}

	cfg = Default()
	cfg.SDRWhiteNits = 40
	cfg.Validate()
	if cfg.SDRWhiteNits != 80 {
		t.Fatalf("SDRWhiteNits = %.1f, want 80 (clamped)", cfg.SDRWhiteNits)
	}

	cfg = Default()
	cfg.SDRWhiteNits = 0 // auto-detect stays untouched
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("auto-detect white level should validate, got: %v", errs)
	}
}

func TestValidateEncodeWorkersClamping(t *testing.T) {
	cfg := Default()
	cfg.EncodeWorkers = 0
	cfg.Validate()
	if cfg.EncodeWorkers != 1 {
		t.Fatalf("EncodeWorkers = %d, want 1", cfg.EncodeWorkers)
	}

	cfg = Default()
	cfg.EncodeWorkers = 500
	cfg.Validate()
	if cfg.EncodeWorkers != 64 {
		t.Fatalf("EncodeWorkers = %d, want 64", cfg.EncodeWorkers)
	}
}

func TestValidateUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	if errs := cfg.Validate(); len(errs) == 0 {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidateInvalidLogFormat(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	if errs := cfg.Validate(); len(errs) == 0 {
		t.Fatal("expected error for invalid log format")
	}
}

func TestValidDefaultsHaveNoErrors(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config has errors: %v", errs)
	}
}
