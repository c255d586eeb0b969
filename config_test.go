package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewConfig(dir, nil)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.Settings.Fetch.Timeout != 60*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 60s", cfg.Settings.Fetch.Timeout)
	}
	if cfg.Settings.Gateway.BaseURL == "" {
		t.Error("Gateway.BaseURL should have a default")
	}
	if cfg.Settings.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Settings.Log.Level)
	}
	if cfg.StorePath() != filepath.Join(dir, "images.db") {
		t.Errorf("StorePath() = %q", cfg.StorePath())
	}
	if cfg.CredentialsPath() != filepath.Join(dir, "credentials") {
		t.Errorf("CredentialsPath() = %q", cfg.CredentialsPath())
	}

	opts := cfg.PostOptions()
	if opts.AltText != "" || len(opts.Tags) != 0 {
		t.Errorf("PostOptions() = %+v, want empty", opts)
	}
}

func TestNewConfigRequiresDir(t *testing.T) {
	if _, err := NewConfig("", nil); err == nil {
		t.Error("NewConfig() should fail without a directory")
	}
}

func TestNewConfigDirectorySettings(t *testing.T) {
	dir := t.TempDir()
	settings := `alt_text: "A photo from the archive"
tags:
  - archive
  - photography
gateway:
  timeout: 5s
`
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(settings), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewConfig(dir, nil)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.Settings.Gateway.Timeout != 5*time.Second {
		t.Errorf("Gateway.Timeout = %v, want 5s", cfg.Settings.Gateway.Timeout)
	}
	// Keys absent from the file keep their defaults
	if cfg.Settings.Fetch.Timeout != 60*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 60s", cfg.Settings.Fetch.Timeout)
	}

	opts := cfg.PostOptions()
	if opts.AltText != "A photo from the archive" {
		t.Errorf("AltText = %q", opts.AltText)
	}
	if !reflect.DeepEqual(opts.Tags, []string{"archive", "photography"}) {
		t.Errorf("Tags = %v", opts.Tags)
	}
}

func TestNewConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("alt_text: from settings\ntags: [a]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	alt := "from flag"
	tags := "nature; birds;;"
	cfg, err := NewConfig(dir, &ConfigOverrides{AltText: &alt, Tags: &tags})
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	opts := cfg.PostOptions()
	if opts.AltText != "from flag" {
		t.Errorf("AltText = %q, want %q", opts.AltText, "from flag")
	}
	if !reflect.DeepEqual(opts.Tags, []string{"nature", "birds"}) {
		t.Errorf("Tags = %v, want [nature birds]", opts.Tags)
	}
}

func TestNewConfigExplicitSettingsMustExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := NewConfig(t.TempDir(), &ConfigOverrides{SettingsPath: &missing}); err == nil {
		t.Error("NewConfig() should fail when an explicit settings file is missing")
	}
}

func TestNewConfigInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("fetch: [not, a, map"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewConfig(dir, nil); err == nil {
		t.Error("NewConfig() should fail on malformed YAML")
	}
}

func TestGetTemplate(t *testing.T) {
	cfg, err := NewConfig(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	body, err := cfg.GetTemplate()
	if err != nil || body != defaultTemplate {
		t.Errorf("GetTemplate() = %q, %v; want embedded default", body, err)
	}

	path := filepath.Join(t.TempDir(), "post.md")
	os.WriteFile(path, []byte("{{.Title}}"), 0644)
	cfg.Overrides = &ConfigOverrides{TemplatePath: &path}

	body, err = cfg.GetTemplate()
	if err != nil || body != "{{.Title}}" {
		t.Errorf("GetTemplate() = %q, %v; want override", body, err)
	}

	missing := filepath.Join(t.TempDir(), "missing.md")
	cfg.Overrides = &ConfigOverrides{TemplatePath: &missing}
	if _, err := cfg.GetTemplate(); err == nil {
		t.Error("GetTemplate() should fail for a missing override")
	}
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	content := "COPOSTR_EMAIL='poster@example.com'\nCOPOSTR_PASSWORD='from-file'\nCOPOSTR_PROJECT='archive'\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("COPOSTR_PASSWORD", "from-env")

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}

	if creds.Email != "poster@example.com" {
		t.Errorf("Email = %q", creds.Email)
	}
	if creds.Password != "from-env" {
		t.Errorf("Password = %q, want environment value", creds.Password)
	}
	if creds.Project != "archive" {
		t.Errorf("Project = %q", creds.Project)
	}
	if len(creds.Missing()) != 0 {
		t.Errorf("Missing() = %v, want none", creds.Missing())
	}
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	if _, err := LoadCredentials(filepath.Join(t.TempDir(), "credentials")); err == nil {
		t.Error("LoadCredentials() should fail when the file is missing")
	}
}

func TestCredentialsMissing(t *testing.T) {
	creds := &Credentials{Email: "a@example.com"}

	want := []string{"COPOSTR_PASSWORD", "COPOSTR_PROJECT"}
	if got := creds.Missing(); !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"one", []string{"one"}},
		{"one;two", []string{"one", "two"}},
		{" one ; two words ;", []string{"one", "two words"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := splitTags(tt.input); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("splitTags(%q) = %#v, want %#v", tt.input, got, tt.expected)
			}
		})
	}
}
