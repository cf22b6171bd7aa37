package ingest

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/resilience"
)

//go:embed config/sources.yaml
var sourcesYAML []byte

// Registry holds the catalogue of known grant sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

type SourceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Region      string `yaml:"region,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Deps are the shared collaborators handed to every source builder.
type Deps struct {
	Client *http.Client
	Exec   *resilience.Executor
	Logger *slog.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// LoadRegistry parses the embedded sources.yaml, expanding ${VAR} references.
func LoadRegistry() (*Registry, error) {
	expanded := os.ExpandEnv(string(sourcesYAML))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}
	return &reg, nil
}

func (r *Registry) Find(id string) (SourceConfig, bool) {
	for _, sc := range r.Sources {
		if sc.ID == id {
			return sc, true
		}
	}
	return SourceConfig{}, false
}

// enabled reports whether the scrapers config switches a registry entry on.
func enabled(id string, cfg config.ScrapersConfig) bool {
	switch id {
	case "mock":
		return cfg.Mock.Enabled
	case "horizon_europe":
		return cfg.HorizonEurope.Enabled
	case "html_listing":
		return cfg.HTMLListing.Enabled
	}
	return false
}

// BuildSources instantiates every enabled source in registry order.
func BuildSources(cfg config.ScrapersConfig, deps Deps) ([]Source, error) {
	return BuildSourcesWith(DefaultFactory, cfg, deps)
}

func BuildSourcesWith(factory *SourceFactory, cfg config.ScrapersConfig, deps Deps) ([]Source, error) {
	reg, err := LoadRegistry()
	if err != nil {
		return nil, err
	}

	var out []Source
	for _, sc := range reg.Sources {
		if !enabled(sc.ID, cfg) {
			continue
		}
		build, err := factory.Get(sc.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.ID, err)
		}
		out = append(out, build(sc, cfg, deps))
	}
	return out, nil
}

// BuildSource instantiates one registry entry regardless of its enabled flag.
func BuildSource(id string, cfg config.ScrapersConfig, deps Deps) (Source, error) {
	reg, err := LoadRegistry()
	if err != nil {
		return nil, err
	}
	sc, ok := reg.Find(id)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", id)
	}
	build, err := DefaultFactory.Get(sc.Kind)
	if err != nil {
		return nil, err
	}
	return build(sc, cfg, deps), nil
}
