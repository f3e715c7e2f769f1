package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pontaoski/mini/link"
	"gopkg.in/yaml.v2"
)

// FileName is the project file read by the CLI from the working directory.
const FileName = "mini.yaml"

type Config struct {
	// Package names the default output executable.
	Package string `yaml:"Package"`
	// Target is empty for the host.
	Target link.Target `yaml:"Target,omitempty"`
	// Timeout bounds the link step. Zero means no limit.
	Timeout time.Duration `yaml:"Timeout,omitempty"`
	// Linker overrides the platform's linker search.
	Linker      string `yaml:"Linker,omitempty"`
	EmitSymbols bool   `yaml:"EmitSymbols,omitempty"`
}

func Default() Config {
	return Config{
		Timeout: 2 * time.Minute,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("error reading %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("error reading %s: %w", path, err)
	}
	if c.Timeout < 0 {
		return c, fmt.Errorf("error reading %s: negative Timeout %s", path, c.Timeout)
	}

	return c, nil
}

// Save writes c to path, refusing to replace an existing file.
func Save(path string, c Config) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}

	fi, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer fi.Close()

	if _, err := fi.Write(out); err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	return nil
}
