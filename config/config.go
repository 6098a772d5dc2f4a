package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	yaml "gopkg.in/yaml.v2"
)

// Supported values of Main.Engine.
const (
	EngineYara      = "yara"
	EngineHyperscan = "hyperscan"
)

// Main is the top level configuration.
type Main struct {
	// Yara is the general rule file. Empty disables general content scanning.
	Yara string `yaml:"yara"`

	// EmailYara is the email rule file. Empty disables email content scanning.
	EmailYara string `yaml:"emailYara"`

	Engine          string `yaml:"engine"`
	LegacyAlignment bool   `yaml:"legacyFragmentAlignment"`
	RulesCacheDir   string `yaml:"rulesCacheDir"`
	MatchLogDir     string `yaml:"matchLogDir"`
	LogLevel        string `yaml:"logLevel"`
}

// Default returns the configuration used when no config file is given.
func Default() *Main {
	return &Main{
		Engine:   EngineYara,
		LogLevel: "info",
	}
}

// RuleFile implements scan.Config.
func (c *Main) RuleFile() string { return c.Yara }

// EmailRuleFile implements scan.Config.
func (c *Main) EmailRuleFile() string { return c.EmailYara }

// LegacyFragmentAlignment implements scan.Config.
func (c *Main) LegacyFragmentAlignment() bool { return c.LegacyAlignment }

// FileSystem is the interface to read config files.
type FileSystem interface {
	ReadFile(filename string) ([]byte, error)
}

// FileSystemImpl reads config files from the real file system.
type FileSystemImpl struct{}

// ReadFile reads the whole file.
func (fs *FileSystemImpl) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Load reads a YAML config file on top of the defaults and validates it. Unknown keys are an error.
func Load(fs FileSystem, filename string) (c *Main, err error) {
	bb, err := fs.ReadFile(filename)
	if err != nil {
		err = fmt.Errorf("failed to read config file %v: %v", filename, err)
		return
	}

	m := Default()
	err = yaml.UnmarshalStrict(bb, m)
	if err != nil {
		err = fmt.Errorf("failed to parse config file %v: %v", filename, err)
		return
	}

	err = m.Validate()
	if err != nil {
		err = fmt.Errorf("invalid config file %v: %v", filename, err)
		return
	}

	c = m
	return
}

// Validate checks the values that can be checked without touching the rule files.
func (c *Main) Validate() error {
	switch c.Engine {
	case EngineYara, EngineHyperscan:
	default:
		return fmt.Errorf("unknown engine %q, must be %q or %q", c.Engine, EngineYara, EngineHyperscan)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}
