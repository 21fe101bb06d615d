// Package sources loads the per-source prior configuration consumed by the
// dedup cross-source pass and the posterior classifier. The mapping is read
// once per run and is immutable afterwards.
package sources

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWeight = 1.0
	minWeight     = 0.5
	maxWeight     = 5.0
)

// Source is one configured feed with its trust priors.
type Source struct {
	Weight    float64  `yaml:"weight"`
	Official  bool     `yaml:"official"`
	Expertise []string `yaml:"expertise"`
	Rank      int      `yaml:"rank"`
}

// Config maps source identifiers to their priors.
type Config struct {
	Weights map[string]Source `yaml:"weights"`
}

// Load reads the sources file. A missing or empty file is a configuration
// error: the run must halt before any network or classification work.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if len(cfg.Weights) == 0 {
		return nil, fmt.Errorf("sources file %s has no weights", path)
	}

	for id, src := range cfg.Weights {
		cfg.Weights[id] = normalize(src)
	}
	return &cfg, nil
}

// IDs returns the configured source identifiers in stable order.
func (c *Config) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Weights))
	for id := range c.Weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PriorsFor returns the trust weight and expertise tags for a source.
// Absent sources default to weight 1.0 with no expertise.
func (c *Config) PriorsFor(sourceID string) (float64, []string) {
	src, ok := c.lookup(sourceID)
	if !ok {
		return DefaultWeight, nil
	}
	return src.Weight, src.Expertise
}

// IsOfficial reports whether the source is flagged official.
func (c *Config) IsOfficial(sourceID string) bool {
	src, ok := c.lookup(sourceID)
	return ok && src.Official
}

func (c *Config) lookup(sourceID string) (Source, bool) {
	if c == nil || len(c.Weights) == 0 {
		return Source{}, false
	}
	src, ok := c.Weights[strings.TrimSpace(sourceID)]
	return src, ok
}

// normalize fills the weight from rank when none is supplied and clamps it
// to the working range.
func normalize(src Source) Source {
	if src.Weight == 0 {
		if src.Rank > 0 {
			src.Weight = weightFromRank(src.Rank)
		} else {
			src.Weight = DefaultWeight
		}
	}
	if src.Weight < minWeight {
		src.Weight = minWeight
	}
	if src.Weight > maxWeight {
		src.Weight = maxWeight
	}

	cleaned := make([]string, 0, len(src.Expertise))
	for _, tag := range src.Expertise {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	src.Expertise = cleaned
	return src
}

// weightFromRank derives a trust weight from a 1-based editorial rank:
// rank 1 maps to the top of the range and the weight decays toward the
// default as rank grows.
func weightFromRank(rank int) float64 {
	w := maxWeight - float64(rank-1)*0.5
	if w < DefaultWeight {
		return DefaultWeight
	}
	return w
}
