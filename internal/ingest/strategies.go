package ingest

import (
	"fmt"
	"sort"

	"github.com/david/eu-grants-monitor/internal/config"
)

// SourceBuilder turns a registry entry plus the scrapers config into a Source.
type SourceBuilder func(sc SourceConfig, cfg config.ScrapersConfig, deps Deps) Source

// SourceFactory maps registry kinds (from sources.yaml) to builders.
type SourceFactory struct {
	builders map[string]SourceBuilder
}

func NewSourceFactory() *SourceFactory {
	return &SourceFactory{
		builders: make(map[string]SourceBuilder),
	}
}

func (f *SourceFactory) Register(kind string, b SourceBuilder) {
	f.builders[kind] = b
}

func (f *SourceFactory) Get(kind string) (SourceBuilder, error) {
	b, ok := f.builders[kind]
	if !ok {
		return nil, fmt.Errorf("source kind not found: %s", kind)
	}
	return b, nil
}

func (f *SourceFactory) Kinds() []string {
	kinds := make([]string, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

var DefaultFactory = NewSourceFactory()

func init() {
	DefaultFactory.Register("fixture", func(_ SourceConfig, _ config.ScrapersConfig, deps Deps) Source {
		return NewFixtureSource(deps.withDefaults().Now)
	})
	DefaultFactory.Register("eu_funding_tenders", func(sc SourceConfig, cfg config.ScrapersConfig, deps Deps) Source {
		hc := cfg.HorizonEurope
		if hc.BaseURL == "" {
			hc.BaseURL = sc.BaseURL
		}
		return NewHorizonSource(hc, deps)
	})
	DefaultFactory.Register("html_listing", func(_ SourceConfig, cfg config.ScrapersConfig, deps Deps) Source {
		return NewListingSource(cfg.HTMLListing, deps)
	})
}
