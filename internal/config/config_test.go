package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amishk599/jobscout/internal/ai"
	"github.com/amishk599/jobscout/internal/crawler"
	"github.com/amishk599/jobscout/internal/enrich"
	"github.com/amishk599/jobscout/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobscout.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("TEST_JOBSCOUT_KEY", "sk-test")
	path := writeConfig(t, `
crawler:
  pages: 5
  search_attempts: {min: 2, max: 3}
  link_threshold: {min: 10, max: 20}
  pause: {min: 30s, max: 45s}
  timing:
    after_submit: 1s
  selectors:
    title: h1.job-title
browser:
  headless: false
enrich:
  batch_size: 25
  fields:
    - name: remote
      type: Boolean
      prompt: Is the job fully remote? Answer yes or no.
ai:
  provider: anthropic
  model: claude-test
  api_key: ${TEST_JOBSCOUT_KEY}
  timeout: 10s
notify:
  listen_url: redis://localhost:6379/0
notification:
  type: slack
  webhook_url: https://hooks.slack.com/services/T/B/X
metrics:
  addr: ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := cfg.Crawler
	if c.Pages != 5 {
		t.Errorf("Pages = %d, want 5", c.Pages)
	}
	if c.SearchAttempts.Min != 2 || c.SearchAttempts.Max != 3 {
		t.Errorf("SearchAttempts = %v", c.SearchAttempts)
	}
	if c.LinkThreshold.Min != 10 || c.LinkThreshold.Max != 20 {
		t.Errorf("LinkThreshold = %v", c.LinkThreshold)
	}
	if c.Pause.Min != 30*time.Second || c.Pause.Max != 45*time.Second {
		t.Errorf("Pause = %v", c.Pause)
	}
	if c.Timing.AfterSubmit != time.Second {
		t.Errorf("AfterSubmit = %v, want 1s", c.Timing.AfterSubmit)
	}
	if c.Timing.ScrollWait != crawler.DefaultTiming().ScrollWait {
		t.Errorf("unset timing should keep its default, got %v", c.Timing.ScrollWait)
	}
	if c.Selectors.Title != "h1.job-title" {
		t.Errorf("Title selector = %q", c.Selectors.Title)
	}
	if c.Selectors.Criteria != crawler.DefaultSelectors().Criteria {
		t.Errorf("unset selector should keep its default, got %q", c.Selectors.Criteria)
	}
	if cfg.Browser.Headless {
		t.Error("Headless should be false")
	}
	if cfg.Enrich.BatchSize != 25 || cfg.Enrich.DescriptionCap != enrich.DefaultDescriptionCap {
		t.Errorf("Enrich = %+v", cfg.Enrich)
	}
	if len(cfg.Enrich.Fields) != 2 {
		t.Fatalf("Fields = %+v, want default plus remote", cfg.Enrich.Fields)
	}
	if f := cfg.Enrich.Fields[1]; f.Name != "remote" || f.Type != model.FieldBoolean {
		t.Errorf("extra field = %+v", f)
	}
	if cfg.AI.Provider != ai.ProviderAnthropic || cfg.AI.APIKey != "sk-test" || cfg.AI.Timeout != 10*time.Second {
		t.Errorf("AI = %+v", cfg.AI)
	}
	if cfg.AI.BaseURL != "" {
		t.Errorf("non-openai provider should not inherit the openai base url, got %q", cfg.AI.BaseURL)
	}
	if cfg.Notify.ListenURL != "redis://localhost:6379/0" || cfg.Notify.Channel != "jobs" {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Crawler.ExtractAttempts.Min != 5 || cfg.Crawler.ExtractAttempts.Max != 8 {
		t.Errorf("ExtractAttempts = %v", cfg.Crawler.ExtractAttempts)
	}
	if cfg.Enrich.BatchSize != 10 || cfg.Enrich.DescriptionCap != 16300 {
		t.Errorf("Enrich = %+v", cfg.Enrich)
	}
	if len(cfg.Enrich.Fields) != 1 || cfg.Enrich.Fields[0].Name != "years_of_experience" {
		t.Errorf("Fields = %+v", cfg.Enrich.Fields)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "crawler: [broken")); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"inverted range", "crawler:\n  extract_attempts: {min: 5, max: 2}\n"},
		{"zero attempts", "crawler:\n  search_attempts: {min: 0, max: 0}\n"},
		{"bad duration", "crawler:\n  pause: {min: soon}\n"},
		{"negative batch", "enrich:\n  batch_size: -1\n"},
		{"bad field name", "enrich:\n  fields:\n    - {name: Bad-Name, type: boolean, prompt: q}\n"},
		{"unknown field type", "enrich:\n  fields:\n    - {name: salary, type: money, prompt: q}\n"},
		{"field without prompt", "enrich:\n  fields:\n    - {name: remote, type: boolean}\n"},
		{"duplicate field", "enrich:\n  fields:\n    - {name: years_of_experience, type: smallint, prompt: q}\n"},
		{"unknown provider", "ai:\n  provider: llama\n"},
		{"slack without webhook", "notification:\n  type: slack\n"},
		{"slack bad webhook", "notification:\n  type: slack\n  webhook_url: https://example.com/hook\n"},
		{"unknown notifier", "notification:\n  type: email\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv(EnvPath, "")
	if got := ResolvePath(""); got != "" {
		t.Errorf("no file: got %q, want defaults", got)
	}
	if err := os.WriteFile(DefaultPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("local file: got %q", got)
	}
	t.Setenv(EnvPath, "/etc/jobscout.yaml")
	if got := ResolvePath(""); got != "/etc/jobscout.yaml" {
		t.Errorf("env: got %q", got)
	}
	if got := ResolvePath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("flag: got %q", got)
	}
}

func TestLoadResolved_Defaults(t *testing.T) {
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv(EnvPath, "")

	cfg, err := LoadResolved("")
	if err != nil {
		t.Fatalf("LoadResolved: %v", err)
	}
	if cfg.Notification.Type != "log" {
		t.Errorf("Notification.Type = %q, want log", cfg.Notification.Type)
	}
}
