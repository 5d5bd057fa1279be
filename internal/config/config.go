package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Layout    LayoutConfig    `yaml:"layout"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

type DashboardConfig struct {
	Title           string `yaml:"title"`
	Theme           string `yaml:"theme"`
	RefreshInterval int    `yaml:"refresh_interval"`
}

type LayoutConfig struct {
	Columns int            `yaml:"columns"`
	Widgets []WidgetConfig `yaml:"widgets"`
}

type WidgetConfig struct {
	Integration string `yaml:"integration"`
	Position    int    `yaml:"position"`
	Enabled     *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the widget should be loaded. Widgets are
// enabled unless the config explicitly disables them.
func (w WidgetConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Default returns the configuration used when config.yaml omits a field
// or does not exist at all.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 9753,
			Host: "0.0.0.0",
		},
		Dashboard: DashboardConfig{
			Title:           "Home Dashboard",
			Theme:           "dark",
			RefreshInterval: 30,
		},
		Layout: LayoutConfig{
			Columns: 3,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnabledWidgets returns the configured widgets that are not disabled,
// preserving config order. Entries without an integration name are skipped.
func (c *Config) EnabledWidgets() []WidgetConfig {
	var widgets []WidgetConfig
	for _, w := range c.Layout.Widgets {
		if w.Integration == "" || !w.IsEnabled() {
			continue
		}
		widgets = append(widgets, w)
	}
	return widgets
}

// Credentials holds per-integration credential blocks from credentials.yaml.
// Each block stays as a raw YAML node until an integration decodes it into
// its own typed config.
type Credentials struct {
	sections map[string]yaml.Node
}

// LoadCredentials reads credentials.yaml from the same directory as the
// main config file. A missing file is not an error: integrations that need
// no credentials still work.
func LoadCredentials(configPath string) (*Credentials, error) {
	path := filepath.Join(filepath.Dir(configPath), "credentials.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{sections: map[string]yaml.Node{}}, nil
		}
		return nil, err
	}

	sections := make(map[string]yaml.Node)
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &Credentials{sections: sections}, nil
}

// Has reports whether a credential block exists for the integration.
func (c *Credentials) Has(integration string) bool {
	_, ok := c.sections[integration]
	return ok
}

// Decode unmarshals the credential block for the named integration into out.
// Decoding a missing block leaves out untouched and returns nil, so
// integrations fall back to their zero-value defaults.
func (c *Credentials) Decode(integration string, out any) error {
	node, ok := c.sections[integration]
	if !ok {
		return nil
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("credentials for %q: %w", integration, err)
	}
	return nil
}
