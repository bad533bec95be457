package crawler

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile describes one site to crawl: where to start and where to stop.
// Crawling stays on the start host and inside the listed sections.
type Profile struct {
	// BaseURL is the site root, e.g. "https://sfn-am.ru".
	BaseURL string `yaml:"baseUrl"`
	// Sections are path prefixes crawled independently; links are followed
	// only within the section they were found in.
	Sections []string `yaml:"sections"`
	// Exclude lists path prefixes never fetched (login pages, search, etc).
	Exclude []string `yaml:"exclude"`
	// MaxPages caps the number of pages fetched per section. 0 means no cap.
	MaxPages int `yaml:"maxPages"`
	// RequestsPerSecond overrides the crawler-wide rate limit for this site.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

// LoadProfile reads and validates a YAML site profile.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("baseUrl %q is not an absolute URL", p.BaseURL)
	}
	if len(p.Sections) == 0 {
		return fmt.Errorf("at least one section path is required")
	}
	for _, s := range p.Sections {
		if !strings.HasPrefix(s, "/") {
			return fmt.Errorf("section %q must start with /", s)
		}
	}
	return nil
}

// Excluded reports whether the path falls under an excluded prefix.
func (p Profile) Excluded(path string) bool {
	for _, e := range p.Exclude {
		if strings.HasPrefix(path, e) {
			return true
		}
	}
	return false
}
