package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jengzang/vehicle-forensics-go/internal/models"
)

var validate = validator.New()

// LoadSettings reads tracking settings from a YAML file. Keys missing from
// the file keep their defaults; unknown keys and out of range values are
// errors. An empty path returns the defaults.
func LoadSettings(path string) (models.TrackingSettings, error) {
	settings := models.DefaultTrackingSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes YAML settings over the defaults and validates them
func ParseSettings(data []byte) (models.TrackingSettings, error) {
	settings := models.DefaultTrackingSettings()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return settings, fmt.Errorf("failed to parse settings: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// ValidateSettings checks ranges and the ordering of the certainty tiers
func ValidateSettings(s models.TrackingSettings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
