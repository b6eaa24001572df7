package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-joqular/joqular/annotations"
)

// Options configures a Database. The exported fields with yaml tags can be
// loaded from a file with LoadOptions.
type Options struct {
	Backend  BackendType `yaml:"backend"`
	Path     string      `yaml:"path"`
	InMemory bool        `yaml:"in_memory"`

	// Provenance restricts join results to pairs verified together.
	Provenance bool `yaml:"provenance"`

	ConditionCacheSize int           `yaml:"condition_cache_size"`
	ConditionCacheTTL  time.Duration `yaml:"condition_cache_ttl"`

	// Verbose prints annotation events to stderr.
	Verbose bool `yaml:"verbose"`

	// Handler receives annotation events in addition to the console and
	// metrics handlers.
	Handler annotations.Handler `yaml:"-"`

	// Registerer, when set, receives the database's Prometheus metrics.
	Registerer prometheus.Registerer `yaml:"-"`
}

// DefaultOptions returns options for an on-disk Badger database at path.
func DefaultOptions(path string) Options {
	return Options{
		Backend:            BadgerBackendType,
		Path:               path,
		Provenance:         true,
		ConditionCacheSize: 1000,
		ConditionCacheTTL:  5 * time.Minute,
	}
}

// InMemoryOptions returns options for an in-memory Badger database.
func InMemoryOptions() Options {
	opts := DefaultOptions("")
	opts.InMemory = true
	return opts
}

// LoadOptions reads YAML options from path on top of DefaultOptions.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read options: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes YAML options on top of DefaultOptions.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions("")
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}
	backend, err := ParseBackendType(string(opts.Backend))
	if err != nil {
		return Options{}, err
	}
	opts.Backend = backend
	return opts, nil
}
