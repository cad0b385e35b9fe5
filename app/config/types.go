package config

// SeedFile is one YAML file in the feeds directory. Each file may declare
// several feeds.
type SeedFile struct {
	Feeds []SeedFeed `yaml:"feeds"`
}

// SeedFeed declares one feed subscription to register at startup.
type SeedFeed struct {
	URL            string `yaml:"url"`
	Title          string `yaml:"title"`
	ExtractContent bool   `yaml:"extract_content"`
}
