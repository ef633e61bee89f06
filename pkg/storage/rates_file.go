package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/reneee98/layers/pkg/domain/billing"
)

const RatesFile = "rates.yaml"

// RatesDocument is the on-disk shape of a rates file.
type RatesDocument struct {
	Currency string             `yaml:"currency,omitempty"`
	Rules    []billing.RateRule `yaml:"rules"`
}

// RatesFilePath returns the rates file location inside a workspace root.
func RatesFilePath(root string) string {
	return filepath.Join(root, LayersDir, RatesFile)
}

// LoadRatesFile reads a rates file. A missing file is billing.ErrRatesFileNotFound.
func LoadRatesFile(path string) (*RatesDocument, error) {
	// #nosec G304 -- path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, billing.ErrRatesFileNotFound)
		}
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}

	var doc RatesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rates: %w", err)
	}
	return &doc, nil
}

// SaveRatesFile writes the document, creating the parent directory if needed.
func SaveRatesFile(path string, doc *RatesDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create rates dir: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal rates: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
