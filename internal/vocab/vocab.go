// Package vocab loads the keyword data that drives filtering, scoring and
// labelling. The built-in document can be overridden by a file on disk.
package vocab

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/pilbarawatch/internal/classify"
	"github.com/deusflow/pilbarawatch/internal/market"
	"github.com/deusflow/pilbarawatch/internal/news"
)

//go:embed vocabulary.yaml
var defaultFS embed.FS

type Vocabulary struct {
	Topics    map[news.Topic]*news.Profile `yaml:"topics"`
	Labels    classify.Labeler             `yaml:"labels"`
	Watchlist []market.Symbol              `yaml:"watchlist"`
}

// Profile returns the tuning data for topic.
func (v *Vocabulary) Profile(topic news.Topic) (*news.Profile, bool) {
	p, ok := v.Topics[topic]
	return p, ok
}

func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "pilbarawatch", "vocabulary.yaml")
}

// Default parses the built-in vocabulary.
func Default() (*Vocabulary, error) {
	data, err := defaultFS.ReadFile("vocabulary.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded vocabulary: %w", err)
	}
	return parse(data, "embedded vocabulary")
}

// Load reads path when given, otherwise the XDG config file if present,
// otherwise the built-in vocabulary.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		path = DefaultPath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return Default()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	return parse(data, path)
}

func parse(data []byte, origin string) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", origin, err)
	}
	if err := validate(&v); err != nil {
		return nil, fmt.Errorf("%s: %w", origin, err)
	}
	return &v, nil
}

func validate(v *Vocabulary) error {
	for _, topic := range news.Topics {
		p, ok := v.Topics[topic]
		if !ok || p == nil {
			return fmt.Errorf("topic %q is missing", topic)
		}
		if len(p.Queries) == 0 {
			return fmt.Errorf("topic %q: at least one query is required", topic)
		}
		if p.Limit <= 0 {
			return fmt.Errorf("topic %q: limit must be positive", topic)
		}
		if len(p.RequiredTerms) == 0 {
			return fmt.Errorf("topic %q: required_terms is empty", topic)
		}
	}
	for i, s := range v.Watchlist {
		if s.Symbol == "" {
			return fmt.Errorf("watchlist entry %d: symbol is required", i)
		}
	}
	return nil
}
