// Package batchconfig loads the control plane's executor-target settings
// from a YAML file and watches it for changes, grounded in the teacher's
// boskos.go resource-config pattern: a viper instance with fsnotify watching
// a single YAML file, reloading on write.
package batchconfig

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"
)

// Config holds the AWS Batch target that runs are submitted against. It is
// small enough to swap out wholesale on every reload rather than diffed
// field by field.
type Config struct {
	JobQueue      string `json:"batchJobQueue"`
	JobDefinition string `json:"batchJobDefinition"`
}

// Load parses path as YAML into a Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read batch config %s: %w", path, err)
	}
	return decode(v)
}

// Watch re-reads path whenever it changes on disk and invokes onChange with
// the newly parsed Config. onChange is also invoked once immediately with
// the config already loaded by a prior call to Load, to keep both call
// sites consistent with a single source of truth.
func Watch(path string, onChange func(*Config, error)) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.WatchConfig()
	v.OnConfigChange(func(in fsnotify.Event) {
		cfg, err := decode(v)
		onChange(cfg, err)
	})
}

func decode(v *viper.Viper) (*Config, error) {
	raw, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal batch config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode batch config: %w", err)
	}
	return &cfg, nil
}
