// Package prompts supplies start/target article pairs for new matches.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/linkrace-arena/internal/verify"
)

//go:embed seeds.yaml
var seedYAML []byte

const DefaultWikiBaseURL = "https://en.wikipedia.org"

type Pair struct {
	Start  string `yaml:"start"`
	Target string `yaml:"target"`
}

type file struct {
	Pairs []Pair `yaml:"pairs"`
}

type Catalog struct {
	pairs   []Pair
	baseURL string
	intn    func(int) int
}

// Load reads the embedded seeds, or path when it is non-empty.
func Load(path, baseURL string) (*Catalog, error) {
	raw := seedYAML
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompts: %w", err)
		}
		raw = b
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	pairs := make([]Pair, 0, len(f.Pairs))
	for i, p := range f.Pairs {
		p.Start = strings.TrimSpace(p.Start)
		p.Target = strings.TrimSpace(p.Target)
		if p.Start == "" || p.Target == "" {
			return nil, fmt.Errorf("prompt %d: start and target required", i)
		}
		if !strings.HasPrefix(p.Start, "/wiki/") {
			p.Start = "/wiki/" + strings.ReplaceAll(p.Start, " ", "_")
		}
		if verify.Verify(p.Start, p.Target).Matched {
			return nil, fmt.Errorf("prompt %d: start already is the target", i)
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		return nil, errors.New("prompt catalog is empty")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultWikiBaseURL
	}
	return &Catalog{pairs: pairs, baseURL: strings.TrimRight(baseURL, "/"), intn: rand.IntN}, nil
}

func (c *Catalog) Len() int { return len(c.pairs) }

// Pick returns a random pair.
func (c *Catalog) Pick() Pair { return c.pairs[c.intn(len(c.pairs))] }

// StartURL resolves a /wiki/ path against the configured wiki host. Full
// URLs are returned unchanged.
func (c *Catalog) StartURL(start string) string {
	start = strings.TrimSpace(start)
	if u, err := url.Parse(start); err == nil && u.IsAbs() {
		return start
	}
	if !strings.HasPrefix(start, "/") {
		start = "/wiki/" + strings.ReplaceAll(start, " ", "_")
	}
	return c.baseURL + start
}

// Task is the human-readable objective shown to both agents.
func Task(start, target string) string {
	from, err := verify.Title(start)
	if err != nil {
		from = start
	}
	return fmt.Sprintf("Navigate from %s to %s using only Wikipedia links.", from, target)
}
