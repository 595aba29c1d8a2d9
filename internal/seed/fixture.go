package seed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bbs/internal/models"

	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written set of posts loaded from YAML:
//
//	posts:
//	  - name: kim
//	    title: Welcome
//	    content: |
//	      First line
//	      Second line
type Fixture struct {
	Posts []models.Post `yaml:"posts"`
}

// LoadFixture decodes and checks a fixture. Missing names and IPs get defaults.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	for i := range fx.Posts {
		p := &fx.Posts[i]
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Content) == "" {
			return nil, fmt.Errorf("fixture post %d: title and content are required", i+1)
		}
		if p.HitCount < 0 {
			return nil, fmt.Errorf("fixture post %d: hit_count must not be negative", i+1)
		}
		if strings.TrimSpace(p.Name) == "" {
			p.Name = "anonymous"
		}
		if p.IPAddr == "" {
			p.IPAddr = "127.0.0.1"
		}
	}
	return &fx, nil
}

// LoadFixtureFile opens and decodes a fixture file.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFixture(f)
}
