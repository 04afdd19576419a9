package poi

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Config tunes the scanner for a particular sensor model.
type Config struct {
	WindowSize int     `json:"window_size"`
	Threshold  float64 `json:"threshold"`
}

// DefaultConfig returns the four beam, sum > 90 scanner.
func DefaultConfig() Config {
	return Config{
		WindowSize: DefaultWindowSize,
		Threshold:  DefaultThreshold,
	}
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", c.WindowSize)
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) || c.Threshold < 0 {
		return fmt.Errorf("threshold must be a non-negative number, got %v", c.Threshold)
	}
	return nil
}

// LoadConfig reads a scanner configuration from a JSON file.
// Fields omitted from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
