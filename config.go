package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	storeFilename       = "images.db"
	credentialsFilename = "credentials"
	settingsFilename    = "settings.yaml"
)

// Credential keys read from the credentials file or the environment
const (
	envEmail           = "COPOSTR_EMAIL"
	envPassword        = "COPOSTR_PASSWORD"
	envProject         = "COPOSTR_PROJECT"
	envAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

// Embedded configuration files
//
//go:embed config/settings.yaml
var defaultSettings string

//go:embed config/post-template.md
var defaultTemplate string

//go:embed config/alt-text-system-prompt.md
var defaultAltTextPrompt string

// ConfigOverrides allows overriding settings and embedded defaults from the command line
type ConfigOverrides struct {
	SettingsPath *string
	TemplatePath *string
	AltText      *string
	Tags         *string
}

// AltTextWriterSettings configures the model used to describe images
type AltTextWriterSettings struct {
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	AltText string   `yaml:"alt_text"`
	Tags    []string `yaml:"tags"`
	Fetch   struct {
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"fetch"`
	Gateway struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"gateway"`
	AltTextWriter AltTextWriterSettings `yaml:"alt_text_writer"`
	Log           struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Credentials identify the poster to the posting gateway
type Credentials struct {
	Email           string
	Password        string
	Project         string
	AnthropicAPIKey string
}

// Missing returns the names of required credentials that are empty
func (c *Credentials) Missing() []string {
	var missing []string
	if c.Email == "" {
		missing = append(missing, envEmail)
	}
	if c.Password == "" {
		missing = append(missing, envPassword)
	}
	if c.Project == "" {
		missing = append(missing, envProject)
	}
	return missing
}

// Config holds the index directory, settings and overrides
type Config struct {
	Dir       string
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig loads settings for the index directory dir
func NewConfig(dir string, overrides *ConfigOverrides) (*Config, error) {
	if dir == "" {
		return nil, errors.New("index directory required")
	}

	settings, err := loadSettings(dir, overrides)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	return &Config{
		Dir:       dir,
		Settings:  settings,
		Overrides: overrides,
	}, nil
}

// StorePath returns the path of the image index database
func (c *Config) StorePath() string {
	return filepath.Join(c.Dir, storeFilename)
}

// CredentialsPath returns the path of the credentials file
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Dir, credentialsFilename)
}

// GetTemplate returns the post body template (from override file or embedded)
func (c *Config) GetTemplate() (string, error) {
	if c.Overrides != nil && c.Overrides.TemplatePath != nil {
		content, err := os.ReadFile(*c.Overrides.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("reading template %s: %w", *c.Overrides.TemplatePath, err)
		}
		return string(content), nil
	}
	return defaultTemplate, nil
}

// PostOptions returns the caller-supplied alt text and tags, flags taking
// precedence over settings
func (c *Config) PostOptions() PostOptions {
	opts := PostOptions{
		AltText: c.Settings.AltText,
		Tags:    c.Settings.Tags,
	}
	if c.Overrides != nil && c.Overrides.AltText != nil {
		opts.AltText = *c.Overrides.AltText
	}
	if c.Overrides != nil && c.Overrides.Tags != nil {
		opts.Tags = splitTags(*c.Overrides.Tags)
	}
	return opts
}

// LoadCredentials reads the credentials file at path. Values already present
// in the process environment take precedence over the file.
func LoadCredentials(path string) (*Credentials, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return values[key]
	}

	return &Credentials{
		Email:           lookup(envEmail),
		Password:        lookup(envPassword),
		Project:         lookup(envProject),
		AnthropicAPIKey: lookup(envAnthropicAPIKey),
	}, nil
}

// loadSettings overlays the settings file on the embedded defaults. An
// explicit settings path must exist; the per-directory file is optional.
func loadSettings(dir string, overrides *ConfigOverrides) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal([]byte(defaultSettings), &settings); err != nil {
		return nil, fmt.Errorf("parsing default settings: %w", err)
	}

	path := filepath.Join(dir, settingsFilename)
	required := false
	if overrides != nil && overrides.SettingsPath != nil {
		path = *overrides.SettingsPath
		required = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return &settings, nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}

	return &settings, nil
}

// splitTags splits a semicolon-separated tag list
func splitTags(s string) []string {
	tags := make([]string, 0)
	for _, tag := range strings.Split(s, ";") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
