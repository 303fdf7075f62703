package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type limitEntry struct {
	TokenizePerMinute   int `yaml:"tokenize_per_minute"`
	DetokenizePerMinute int `yaml:"detokenize_per_minute"`
}

type limitsFile struct {
	Classes map[string]limitEntry `yaml:"classes"`
}

// LoadClassLimits reads per-class limit overrides from a YAML file. An empty
// path yields the built-in defaults. Entries for unknown classes are
// rejected, as is any class whose detokenize budget exceeds its tokenize
// budget.
func LoadClassLimits(path string) (map[string]ClassLimits, error) {
	limits := defaultClassLimits()
	if path == "" {
		return limits, nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg limitsFile
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	for class, entry := range cfg.Classes {
		if _, ok := limits[class]; !ok {
			return nil, fmt.Errorf("unknown requestor class %q in limits file", class)
		}
		if entry.TokenizePerMinute <= 0 || entry.DetokenizePerMinute <= 0 {
			return nil, fmt.Errorf("non-positive limits for class %q", class)
		}
		if entry.DetokenizePerMinute > entry.TokenizePerMinute {
			return nil, fmt.Errorf("detokenize limit exceeds tokenize limit for class %q", class)
		}
		limits[class] = ClassLimits{
			Tokenize:   entry.TokenizePerMinute,
			Detokenize: entry.DetokenizePerMinute,
		}
	}

	return limits, nil
}
