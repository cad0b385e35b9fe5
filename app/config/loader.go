// Package config loads seed feed declarations from a directory of YAML
// files. Seeds are registered idempotently at startup; feeds added through
// the API live only in the database.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Loader struct {
	feedsDir string
}

func NewLoader(feedsDir string) *Loader {
	return &Loader{feedsDir: feedsDir}
}

// LoadAll reads every YAML file in the feeds directory. A missing
// directory is not an error: there are simply no seeds. Duplicate URLs
// across files keep the first declaration.
func (l *Loader) LoadAll() ([]SeedFeed, error) {
	if _, err := os.Stat(l.feedsDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.feedsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.feedsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	var feeds []SeedFeed
	seen := make(map[string]bool)

	for _, file := range files {
		fileFeeds, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		for _, feed := range fileFeeds {
			if err := l.validate(feed); err != nil {
				return nil, fmt.Errorf("invalid feed in %s: %w", file, err)
			}
			if seen[feed.URL] {
				slog.Warn("Duplicate seed feed, keeping first declaration", "url", feed.URL, "file", file)
				continue
			}
			seen[feed.URL] = true
			feeds = append(feeds, feed)
		}

		slog.Debug("Loaded seed file", "file", file, "feeds", len(fileFeeds))
	}

	return feeds, nil
}

func (l *Loader) loadFile(path string) ([]SeedFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return file.Feeds, nil
}

func (l *Loader) validate(feed SeedFeed) error {
	if feed.URL == "" {
		return fmt.Errorf("feed URL is required")
	}

	u, err := url.Parse(feed.URL)
	if err != nil {
		return fmt.Errorf("invalid feed URL %q: %w", feed.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("feed URL %q must use http or https", feed.URL)
	}

	return nil
}
